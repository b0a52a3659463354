package fontcustom

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"iconfont/pkg/pipeline"
	"iconfont/pkg/vfs"
)

func TestTransform_PassesThroughNonIcons(t *testing.T) {
	s := New(Config{Runner: &fakeRunner{}}, nil)
	out := pipeline.NewCollector(nil)

	inputs := []*vfs.File{
		vfs.NewDirectory("/work", "icons/", "icons/nested"),
		vfs.NewNull("/work", "icons/", "icons/placeholder.svg"),
		vfs.NewBuffer("/work", "icons/", "icons/logo.png", []byte("png")),
		vfs.NewBuffer("/work", "icons/", "icons/UPPER.SVG", []byte("<svg/>")),
	}
	for _, f := range inputs {
		if err := s.Transform(context.Background(), f, out); err != nil {
			t.Fatalf("Transform(%s): %v", f.Path, err)
		}
	}

	got := out.Files()
	if len(got) != len(inputs) {
		t.Fatalf("got %d files, want %d", len(got), len(inputs))
	}
	for i := range inputs {
		if got[i] != inputs[i] {
			t.Errorf("file %d was not passed through unchanged", i)
		}
	}
	if groups := s.Groups(); len(groups) != 0 {
		t.Errorf("groups = %v, want none", groups)
	}
}

func TestTransform_GroupsByDirectory(t *testing.T) {
	s := New(Config{Runner: &fakeRunner{}}, nil)
	out := pipeline.NewCollector(nil)

	paths := []string{"icons/a.svg", "icons/b.svg", "other/c.svg", "icons/d.svg"}
	for _, p := range paths {
		if err := s.Transform(context.Background(), icon("", p), out); err != nil {
			t.Fatal(err)
		}
	}

	if len(out.Files()) != 0 {
		t.Error("icons must be consumed, not passed through")
	}
	if got := strings.Join(s.Groups(), ","); got != "icons,other" {
		t.Errorf("groups = %s, want icons,other", got)
	}
	if s.sources["icons"].Path != "icons/d.svg" {
		t.Errorf("last icon should represent the directory, got %s", s.sources["icons"].Path)
	}
}

func TestRun_StreamingInputIsFatal(t *testing.T) {
	runner := &fakeRunner{}
	root := t.TempDir()
	s := New(Config{Runner: runner, WorkspaceRoot: root}, nil)

	files := []*vfs.File{
		icon("icons/", "icons/a.svg"),
		vfs.NewStream("/work", "icons/", "icons/b.svg", io.NopCloser(strings.NewReader("<svg/>"))),
	}
	res, err := pipeline.Run(context.Background(), files, nil, s)
	if !errors.Is(err, ErrStreamingUnsupported) {
		t.Fatalf("err = %v, want ErrStreamingUnsupported", err)
	}
	var pe *pipeline.PluginError
	if !errors.As(err, &pe) || pe.Plugin != PluginName {
		t.Errorf("error not tagged with %s: %v", PluginName, err)
	}
	if len(runner.Calls()) != 0 {
		t.Error("tool must not run after a streamed input")
	}
	if len(res.Files) != 0 {
		t.Errorf("got %d files, want none", len(res.Files))
	}
}

func TestRun_ExampleScenario(t *testing.T) {
	runner := &fakeRunner{}
	root := t.TempDir()
	s := New(Config{
		Runner:        runner,
		WorkspaceRoot: root,
		Options:       Options{FontName: "myfont"},
	}, nil)

	res, err := pipeline.Run(context.Background(), []*vfs.File{icon("icons/", "icons/star.svg")}, nil, s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}

	calls := runner.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d invocations, want 1", len(calls))
	}
	args := calls[0]
	ws := flagValue(args, "--output")
	want := []string{"compile", "icons", "--no_hash", "true", "--force", "true", "--font_name", "myfont", "--output", ws}
	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Errorf("args = %v\nwant   %v", args, want)
	}
	if filepath.Dir(ws) != root || !regexp.MustCompile(`^___tmp-\d{10}___$`).MatchString(filepath.Base(ws)) {
		t.Errorf("unexpected workspace %q", ws)
	}

	var names []string
	for _, f := range res.Files {
		names = append(names, f.Path)
		if f.Base != "icons/" || f.Cwd != "/work" {
			t.Errorf("%s: base=%q cwd=%q", f.Path, f.Base, f.Cwd)
		}
		if len(f.Contents) == 0 {
			t.Errorf("%s is empty", f.Path)
		}
	}
	sort.Strings(names)
	wantNames := []string{"icons/myfont.eot", "icons/myfont.svg", "icons/myfont.ttf", "icons/myfont.woff"}
	if strings.Join(names, ",") != strings.Join(wantNames, ",") {
		t.Errorf("outputs = %v, want %v", names, wantNames)
	}
	assertNoWorkspaces(t, root)
}

func TestFlush_OneInvocationPerDirectory(t *testing.T) {
	runner := &fakeRunner{}
	root := t.TempDir()
	s := New(Config{Runner: runner, WorkspaceRoot: root}, nil)

	files := []*vfs.File{
		icon("src/", "src/icons/a.svg"),
		icon("src/", "src/icons/b.svg"),
		icon("src/", "src/icons/c.svg"),
	}
	res, err := pipeline.Run(context.Background(), files, nil, s)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(runner.Calls()); n != 1 {
		t.Errorf("got %d invocations, want 1", n)
	}
	if len(res.Files) != len(fontFormats) {
		t.Errorf("got %d files, want %d", len(res.Files), len(fontFormats))
	}
	assertNoWorkspaces(t, root)
}

func TestFlush_RunsDirectoriesConcurrently(t *testing.T) {
	const n = 3
	var arrive sync.WaitGroup
	arrive.Add(n)
	release := make(chan struct{})
	go func() {
		arrive.Wait()
		close(release)
	}()

	runner := &fakeRunner{arrive: &arrive, release: release}
	root := t.TempDir()
	s := New(Config{Runner: runner, WorkspaceRoot: root}, nil)

	files := []*vfs.File{
		icon("", "one/a.svg"),
		icon("", "two/a.svg"),
		icon("", "three/a.svg"),
	}
	res, err := pipeline.Run(context.Background(), files, nil, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("invocations did not overlap: %v", res.Errors)
	}
	if got := len(runner.Calls()); got != n {
		t.Errorf("got %d invocations, want %d", got, n)
	}
	if len(res.Files) != n*len(fontFormats) {
		t.Errorf("flush returned before every directory finished: %d files", len(res.Files))
	}

	seen := map[string]bool{}
	for _, c := range runner.Calls() {
		ws := flagValue(c, "--output")
		if seen[ws] {
			t.Errorf("workspace %s reused", ws)
		}
		seen[ws] = true
	}
	assertNoWorkspaces(t, root)
}

func TestFlush_ConcurrencyLimit(t *testing.T) {
	runner := &fakeRunner{hold: 20 * time.Millisecond}
	root := t.TempDir()
	s := New(Config{Runner: runner, WorkspaceRoot: root, Concurrency: 1}, nil)

	files := []*vfs.File{icon("", "a/x.svg"), icon("", "b/x.svg"), icon("", "c/x.svg")}
	if _, err := pipeline.Run(context.Background(), files, nil, s); err != nil {
		t.Fatal(err)
	}
	if runner.maxSeen != 1 {
		t.Errorf("max simultaneous invocations = %d, want 1", runner.maxSeen)
	}
	if len(runner.Calls()) != 3 {
		t.Errorf("got %d invocations, want 3", len(runner.Calls()))
	}
}

func TestFlush_FailureIsIsolated(t *testing.T) {
	toolErr := &ToolError{Args: []string{"compile", "broken"}, Output: "no svgs", Err: errors.New("exit status 1")}
	runner := &fakeRunner{fail: map[string]error{"broken": toolErr}}
	root := t.TempDir()
	s := New(Config{Runner: runner, WorkspaceRoot: root}, nil)

	files := []*vfs.File{icon("", "broken/a.svg"), icon("", "good/a.svg")}
	res, err := pipeline.Run(context.Background(), files, nil, s)
	if err != nil {
		t.Fatalf("per-directory failures must not be fatal: %v", err)
	}
	if len(runner.Calls()) != 2 {
		t.Errorf("both directories must be attempted, got %d calls", len(runner.Calls()))
	}

	if len(res.Errors) != 1 {
		t.Fatalf("got %d errors, want 1", len(res.Errors))
	}
	var pe *pipeline.PluginError
	if !errors.As(res.Errors[0], &pe) || pe.Plugin != PluginName {
		t.Errorf("error not tagged: %v", res.Errors[0])
	}
	if !errors.Is(res.Errors[0], ErrToolFailed) {
		t.Errorf("error should match ErrToolFailed: %v", res.Errors[0])
	}
	if !strings.Contains(res.Errors[0].Error(), "no svgs") {
		t.Errorf("tool output missing from error: %v", res.Errors[0])
	}

	if len(res.Files) != len(fontFormats) {
		t.Errorf("got %d files, want %d from the good directory", len(res.Files), len(fontFormats))
	}
	for _, f := range res.Files {
		if !strings.Contains(string(f.Contents), "good") {
			t.Errorf("%s came from the failed directory", f.Path)
		}
	}
	assertNoWorkspaces(t, root)
}

func TestFlush_MissingWorkspaceIsCreated(t *testing.T) {
	runner := &fakeRunner{noOutput: true}
	root := t.TempDir()
	s := New(Config{Runner: runner, WorkspaceRoot: root}, nil)

	res, err := pipeline.Run(context.Background(), []*vfs.File{icon("", "icons/a.svg")}, nil, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 0 || len(res.Files) != 0 {
		t.Errorf("files=%d errors=%v, want an empty successful run", len(res.Files), res.Errors)
	}
	assertNoWorkspaces(t, root)
}

func TestFlush_Timeout(t *testing.T) {
	runner := &fakeRunner{hold: 5 * time.Second}
	root := t.TempDir()
	s := New(Config{Runner: runner, WorkspaceRoot: root, Timeout: 20 * time.Millisecond}, nil)

	res, err := pipeline.Run(context.Background(), []*vfs.File{icon("", "slow/a.svg")}, nil, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], context.DeadlineExceeded) {
		t.Errorf("errors = %v, want a deadline error", res.Errors)
	}
	assertNoWorkspaces(t, root)
}

func TestFlush_NoIconsIsNoop(t *testing.T) {
	runner := &fakeRunner{}
	s := New(Config{Runner: runner, WorkspaceRoot: t.TempDir()}, nil)
	out := pipeline.NewCollector(nil)
	if err := s.Flush(context.Background(), out); err != nil {
		t.Fatal(err)
	}
	if len(runner.Calls()) != 0 {
		t.Error("tool must not run without icons")
	}
}

func TestFlush_InconsistentStateIsFatal(t *testing.T) {
	s := New(Config{Runner: &fakeRunner{}, WorkspaceRoot: t.TempDir()}, nil)
	s.inputs = append(s.inputs, "orphan")

	err := s.Flush(context.Background(), pipeline.NewCollector(nil))
	if !errors.Is(err, ErrMissingSource) {
		t.Errorf("err = %v, want ErrMissingSource", err)
	}
}

func TestCompileGroup_NormalizesBackslashes(t *testing.T) {
	runner := &fakeRunner{noOutput: true}
	s := New(Config{Runner: runner, WorkspaceRoot: t.TempDir()}, nil)

	res := s.compileGroup(context.Background(), group{dir: `assets\icons`, source: icon("", "x.svg")}, pipeline.NewCollector(nil))
	if res.err != nil {
		t.Fatal(res.err)
	}
	if got := runner.Calls()[0][1]; got != "assets/icons" {
		t.Errorf("directory argument = %q, want assets/icons", got)
	}
}

type rejectingEmitter struct{ errs []error }

func (e *rejectingEmitter) Push(*vfs.File) error { return errors.New("downstream closed") }
func (e *rejectingEmitter) Error(err error)      { e.errs = append(e.errs, err) }

func TestFlush_PushFailureIsReported(t *testing.T) {
	root := t.TempDir()
	s := New(Config{Runner: &fakeRunner{}, WorkspaceRoot: root}, nil)
	if err := s.Transform(context.Background(), icon("", "icons/a.svg"), pipeline.NewCollector(nil)); err != nil {
		t.Fatal(err)
	}

	out := &rejectingEmitter{}
	if err := s.Flush(context.Background(), out); err != nil {
		t.Fatal(err)
	}
	if len(out.errs) != 1 || !strings.Contains(out.errs[0].Error(), "downstream closed") {
		t.Errorf("errs = %v", out.errs)
	}
	assertNoWorkspaces(t, root)
}
