// Package fontcustom turns directories of SVG icons into icon fonts by
// running the fontcustom tool once per directory as a pipeline stage.
package fontcustom

import (
	"errors"
	"time"

	"iconfont/pkg/vfs"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PluginName tags every error raised by the stage.
const PluginName = "iconfont-fontcustom"

// IconExt is the extension of files collected for font generation.
const IconExt = ".svg"

var (
	// ErrStreamingUnsupported is raised when an input carries a live stream.
	ErrStreamingUnsupported = errors.New("streams aren't supported")
	// ErrMissingSource indicates a group directory without a source file.
	ErrMissingSource = errors.New("no source file recorded for directory")
)

// Config configures a Stage.
type Config struct {
	Options       Options       // fontcustom flags
	Runner        Runner        // Tool runner; defaults to an ExecRunner for DefaultTool
	WorkspaceRoot string        // Directory that holds scratch workspaces; defaults to "."
	Concurrency   int           // Maximum simultaneous tool runs; 0 runs every directory at once
	Timeout       time.Duration // Per-invocation timeout; 0 means none
}

// Stage collects icons during Transform and generates fonts during Flush.
// A Stage holds the state of a single run and must not be reused.
type Stage struct {
	cfg    Config
	runner Runner
	ws     *workspaces
	logger *zap.Logger

	inputs  []string             // group directories in first-seen order
	seen    map[string]struct{}  // membership for inputs
	sources map[string]*vfs.File // directory -> last icon seen there
}

// New creates a Stage for one run.
func New(cfg Config, logger *zap.Logger) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("plugin", PluginName), zap.String("runID", uuid.NewString()))

	runner := cfg.Runner
	if runner == nil {
		runner = NewExecRunner(DefaultTool, logger)
	}

	return &Stage{
		cfg:     cfg,
		runner:  runner,
		ws:      newWorkspaces(cfg.WorkspaceRoot),
		logger:  logger,
		seen:    make(map[string]struct{}),
		sources: make(map[string]*vfs.File),
	}
}

// Groups returns the directories collected so far, in first-seen order.
func (s *Stage) Groups() []string {
	return append([]string(nil), s.inputs...)
}
