// Package pipeline is the minimal host for two-phase transform stages:
// every file goes through Transform one at a time, then Flush runs once
// when the input is exhausted.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"iconfont/pkg/vfs"

	"go.uber.org/zap"
)

// ErrNilFile is returned when a stage pushes a nil file downstream.
var ErrNilFile = errors.New("cannot push a nil file")

// Emitter receives the output of a stage. Implementations must be safe for
// concurrent use since stages may push from several goroutines during Flush.
type Emitter interface {
	// Push sends a file downstream.
	Push(f *vfs.File) error
	// Error reports a non-fatal error; the run continues.
	Error(err error)
}

// Stage is a transform in the pipeline.
type Stage interface {
	// Transform handles a single incoming file. A returned error aborts the run.
	Transform(ctx context.Context, f *vfs.File, out Emitter) error
	// Flush runs after the last file. A returned error aborts the run.
	Flush(ctx context.Context, out Emitter) error
}

// PluginError tags an error with the identity of the stage that raised it.
type PluginError struct {
	Plugin string
	Err    error
}

// NewPluginError wraps err with the plugin name.
func NewPluginError(plugin string, err error) *PluginError {
	return &PluginError{Plugin: plugin, Err: err}
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("%s: %v", e.Plugin, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

// Result holds everything the last stage emitted plus every non-fatal error
// reported by any stage.
type Result struct {
	Files  []*vfs.File
	Errors []error
}

// Collector is an Emitter that buffers pushed files and reported errors.
type Collector struct {
	mu     sync.Mutex
	files  []*vfs.File
	errs   *[]error
	logger *zap.Logger
}

// NewCollector creates an empty Collector.
func NewCollector(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{errs: &[]error{}, logger: logger}
}

// Push appends f to the collected files.
func (c *Collector) Push(f *vfs.File) error {
	if f == nil {
		return ErrNilFile
	}
	c.mu.Lock()
	c.files = append(c.files, f)
	c.mu.Unlock()
	return nil
}

// Error records a non-fatal error.
func (c *Collector) Error(err error) {
	if err == nil {
		return
	}
	c.logger.Warn("Stage reported an error", zap.Error(err))
	c.mu.Lock()
	*c.errs = append(*c.errs, err)
	c.mu.Unlock()
}

// Files returns the files pushed so far.
func (c *Collector) Files() []*vfs.File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*vfs.File(nil), c.files...)
}

// Errors returns the errors reported so far.
func (c *Collector) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), (*c.errs)...)
}

// next returns a fresh Collector for the following stage that shares the
// error list with c.
func (c *Collector) next() *Collector {
	return &Collector{errs: c.errs, logger: c.logger}
}

// Run pushes files through the stages in order and returns what the last
// stage emitted. The first fatal error stops the run; the partial result is
// returned alongside it.
func Run(ctx context.Context, files []*vfs.File, logger *zap.Logger, stages ...Stage) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	startTime := time.Now()
	logger.Debug("Starting pipeline", zap.Int("files", len(files)), zap.Int("stages", len(stages)))

	out := NewCollector(logger)
	input := files
	for i, stage := range stages {
		if i > 0 {
			out = out.next()
		}
		stageLogger := logger.With(zap.Int("stage", i))

		for _, f := range input {
			if err := stage.Transform(ctx, f, out); err != nil {
				stageLogger.Error("Transform failed", zap.String("file", f.Path), zap.Error(err))
				return &Result{Files: out.Files(), Errors: out.Errors()}, fmt.Errorf("stage %d transform: %w", i, err)
			}
		}

		if err := stage.Flush(ctx, out); err != nil {
			stageLogger.Error("Flush failed", zap.Error(err))
			return &Result{Files: out.Files(), Errors: out.Errors()}, fmt.Errorf("stage %d flush: %w", i, err)
		}

		input = out.Files()
		stageLogger.Debug("Stage completed", zap.Int("emitted", len(input)))
	}

	result := &Result{Files: input, Errors: out.Errors()}
	logger.Info("Pipeline completed",
		zap.Int("emitted", len(result.Files)),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("elapsed", time.Since(startTime)))
	return result, nil
}
