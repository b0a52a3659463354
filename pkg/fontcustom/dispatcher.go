package fontcustom

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"iconfont/pkg/pipeline"
	"iconfont/pkg/vfs"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// group is one directory of icons to compile.
type group struct {
	dir    string
	source *vfs.File
}

// groupResult is what one directory task reports back to the join.
type groupResult struct {
	dir     string
	emitted int
	err     error
}

// Flush compiles every collected directory concurrently and pushes the
// generated files. Per-directory failures are reported through out.Error and
// never stop sibling directories; Flush itself only fails on inconsistent
// grouping state.
func (s *Stage) Flush(ctx context.Context, out pipeline.Emitter) error {
	if len(s.inputs) == 0 {
		s.logger.Debug("No icon directories collected")
		return nil
	}

	groups := make([]group, 0, len(s.inputs))
	for _, dir := range s.inputs {
		src, ok := s.sources[dir]
		if !ok {
			s.logger.Error("Grouping state is inconsistent", zap.String("dir", dir))
			return pipeline.NewPluginError(PluginName, fmt.Errorf("%w: %s", ErrMissingSource, dir))
		}
		groups = append(groups, group{dir: dir, source: src})
	}

	startTime := time.Now()
	s.logger.Info("Compiling icon fonts", zap.Int("directories", len(groups)))

	var sem chan struct{}
	if s.cfg.Concurrency > 0 {
		sem = make(chan struct{}, s.cfg.Concurrency)
	}

	results := make(chan groupResult, len(groups))
	var wg sync.WaitGroup
	for _, g := range groups {
		wg.Add(1)
		go func(g group) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results <- s.compileGroup(ctx, g, out)
		}(g)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var emitted, failed int
	for r := range results {
		emitted += r.emitted
		if r.err != nil {
			failed++
			s.logger.Error("Directory failed", zap.String("dir", r.dir), zap.Error(r.err))
			out.Error(pipeline.NewPluginError(PluginName, r.err))
		}
	}

	s.logger.Info("Icon fonts compiled",
		zap.Int("directories", len(groups)),
		zap.Int("failed", failed),
		zap.Int("emitted", emitted),
		zap.Duration("elapsed", time.Since(startTime)))
	return nil
}

// compileGroup runs the tool for one directory inside its own workspace and
// pushes what it generated. The workspace is removed on every path.
func (s *Stage) compileGroup(ctx context.Context, g group, out pipeline.Emitter) (res groupResult) {
	res.dir = g.dir
	logger := s.logger.With(zap.String("dir", g.dir))

	ws, err := s.ws.allocate()
	if err != nil {
		res.err = fmt.Errorf("%s: %w", g.dir, err)
		return res
	}
	defer func() {
		if rmErr := os.RemoveAll(ws); rmErr != nil {
			logger.Warn("Failed to remove workspace", zap.String("workspace", ws), zap.Error(rmErr))
			res.err = multierr.Append(res.err, fmt.Errorf("remove workspace %s: %w", ws, rmErr))
		}
	}()

	args := append([]string{"compile", strings.ReplaceAll(g.dir, `\`, "/")}, Args(s.cfg.Options.Merge(ws))...)

	runCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	logger.Debug("Running fontcustom", zap.String("workspace", ws), zap.Strings("args", args))
	if err := s.runner.Run(runCtx, args); err != nil {
		res.err = fmt.Errorf("%s: %w", g.dir, err)
		return res
	}

	names, err := listWorkspace(ws)
	if err != nil {
		res.err = fmt.Errorf("%s: %w", g.dir, err)
		return res
	}

	files, err := readGenerated(ws, names, g.source)
	if err != nil {
		res.err = fmt.Errorf("%s: %w", g.dir, err)
		return res
	}

	for _, f := range files {
		if err := out.Push(f); err != nil {
			res.err = multierr.Append(res.err, fmt.Errorf("%s: push %s: %w", g.dir, f.Path, err))
			continue
		}
		res.emitted++
	}
	logger.Debug("Directory compiled", zap.Int("generated", len(names)), zap.Int("emitted", res.emitted))
	return res
}

// readGenerated reads every generated file concurrently and wraps it in a
// File placed at the source's base. Nothing is returned unless every read
// succeeds.
func readGenerated(ws string, names []string, source *vfs.File) ([]*vfs.File, error) {
	files := make([]*vfs.File, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			contents, err := os.ReadFile(filepath.Join(ws, name))
			if err != nil {
				errs[i] = fmt.Errorf("read generated file %s: %w", name, err)
				return
			}
			files[i] = vfs.NewBuffer(source.Cwd, source.Base, filepath.Join(source.Base, name), contents)
		}(i, name)
	}
	wg.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}
	return files, nil
}
