package fontcustom

import (
	"context"
	"path/filepath"

	"iconfont/pkg/pipeline"
	"iconfont/pkg/vfs"

	"go.uber.org/zap"
)

// Transform groups SVG icons by their directory. Icons are consumed; every
// other file is passed through untouched.
func (s *Stage) Transform(_ context.Context, f *vfs.File, out pipeline.Emitter) error {
	if f.IsDirectory() {
		return out.Push(f)
	}

	if f.IsNull() {
		return out.Push(f)
	}

	if f.IsStream() {
		s.logger.Error("Rejecting streamed input", zap.String("file", f.Path))
		return pipeline.NewPluginError(PluginName, ErrStreamingUnsupported)
	}

	if filepath.Ext(f.Path) != IconExt {
		return out.Push(f)
	}

	dir := filepath.Dir(f.Path)
	if _, ok := s.seen[dir]; !ok {
		s.seen[dir] = struct{}{}
		s.inputs = append(s.inputs, dir)
		s.logger.Debug("New icon directory", zap.String("dir", dir))
	}
	// Only Cwd and Base are read from the source, and those are the same for
	// every icon of a directory.
	s.sources[dir] = f

	return nil
}
