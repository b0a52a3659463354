package fontcustom

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	workspacePrefix   = "___tmp-"
	workspaceSuffix   = "___"
	workspaceAlphabet = "0123456789"
	workspaceTokenLen = 10
	maxAllocAttempts  = 16
)

// WorkspaceGlob matches the base name of every workspace directory.
const WorkspaceGlob = workspacePrefix + "*" + workspaceSuffix

// ErrWorkspaceExhausted is returned when no free workspace name was found.
var ErrWorkspaceExhausted = errors.New("could not allocate a unique workspace")

// workspaces hands out scratch directory names that are unique within a
// run and do not exist on disk yet.
type workspaces struct {
	root string

	mu   sync.Mutex
	used map[string]struct{}
}

func newWorkspaces(root string) *workspaces {
	if root == "" {
		root = "."
	}
	return &workspaces{root: root, used: make(map[string]struct{})}
}

// allocate reserves a new workspace path. The directory itself is left for
// the tool to create.
func (w *workspaces) allocate() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := 0; i < maxAllocAttempts; i++ {
		token, err := gonanoid.Generate(workspaceAlphabet, workspaceTokenLen)
		if err != nil {
			return "", fmt.Errorf("generate workspace token: %w", err)
		}
		path := filepath.Join(w.root, workspacePrefix+token+workspaceSuffix)
		if _, taken := w.used[path]; taken {
			continue
		}
		if _, err := os.Lstat(path); err == nil {
			continue
		}
		w.used[path] = struct{}{}
		return path, nil
	}
	return "", ErrWorkspaceExhausted
}

// listWorkspace returns the names of the regular files in dir. A workspace
// the tool never created is created empty and listed again.
func listWorkspace(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, fmt.Errorf("create workspace %s: %w", dir, mkErr)
		}
		if entries, err = os.ReadDir(dir); err != nil {
			return nil, fmt.Errorf("list workspace %s: %w", dir, err)
		}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
