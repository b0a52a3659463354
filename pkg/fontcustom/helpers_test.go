package fontcustom

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"iconfont/pkg/vfs"
)

var fontFormats = []string{"eot", "svg", "woff", "ttf"}

// fakeRunner imitates fontcustom: it writes one file per format into the
// --output directory, named after --font_name.
type fakeRunner struct {
	mu       sync.Mutex
	calls    [][]string
	inFlight int
	maxSeen  int

	fail     map[string]error // keyed by the compiled directory
	noOutput bool             // leave the workspace uncreated
	hold     time.Duration    // keep each call busy this long

	arrive  *sync.WaitGroup // signalled on entry when set
	release chan struct{}   // each call waits for this when set
}

func (r *fakeRunner) Run(ctx context.Context, args []string) error {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string(nil), args...))
	r.inFlight++
	if r.inFlight > r.maxSeen {
		r.maxSeen = r.inFlight
	}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
	}()

	if r.arrive != nil {
		r.arrive.Done()
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("sibling invocations never started")
		}
	}
	if r.hold > 0 {
		select {
		case <-time.After(r.hold):
		case <-ctx.Done():
			return &ToolError{Args: args, Err: ctx.Err()}
		}
	}

	if err := r.fail[args[1]]; err != nil {
		return err
	}
	if r.noOutput {
		return nil
	}

	out := flagValue(args, "--output")
	name := flagValue(args, "--font_name")
	if name == "" {
		name = "fontcustom"
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	for _, ext := range fontFormats {
		data := []byte("generated " + ext + " from " + args[1])
		if err := os.WriteFile(filepath.Join(out, name+"."+ext), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRunner) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func flagValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func icon(base, path string) *vfs.File {
	return vfs.NewBuffer("/work", base, path, []byte("<svg/>"))
}

// assertNoWorkspaces fails if any scratch directory is left in root.
func assertNoWorkspaces(t *testing.T, root string) {
	t.Helper()
	leftovers, err := filepath.Glob(filepath.Join(root, workspacePrefix+"*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) > 0 {
		t.Errorf("workspaces left behind: %v", leftovers)
	}
}
