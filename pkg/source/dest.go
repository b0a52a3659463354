package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"iconfont/pkg/vfs"

	"go.uber.org/zap"
)

// Dest writes buffer files under dir at their path relative to Base and
// recreates directory markers. Null and stream files are skipped. It
// returns the number of files written.
func Dest(dir string, files []*vfs.File, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ensureDirectory(dir, logger); err != nil {
		return 0, fmt.Errorf("failed to create destination: %w", err)
	}

	written := 0
	for _, f := range files {
		rel := f.Relative()
		if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			logger.Error("File is outside its base", zap.String("path", f.Path), zap.String("base", f.Base))
			return written, fmt.Errorf("%s is outside its base %s", f.Path, f.Base)
		}
		target := filepath.Join(dir, rel)

		switch f.Kind() {
		case vfs.KindDirectory:
			if err := ensureDirectory(target, logger); err != nil {
				return written, fmt.Errorf("failed to create directory %s: %w", target, err)
			}
		case vfs.KindBuffer:
			if err := ensureDirectory(filepath.Dir(target), logger); err != nil {
				return written, fmt.Errorf("failed to create directory for %s: %w", target, err)
			}
			if err := writeToFile(target, f.Contents, 0o644, logger); err != nil {
				return written, fmt.Errorf("failed to write %s: %w", target, err)
			}
			written++
		default:
			logger.Debug("Skipping file without buffered contents", zap.String("path", f.Path), zap.Stringer("kind", f.Kind()))
		}
	}
	return written, nil
}

// ensureDirectory ensures a directory exists, creating it if necessary.
func ensureDirectory(path string, logger *zap.Logger) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		logger.Error("Failed to create directory", zap.String("path", path), zap.Error(err))
		return err
	}
	return nil
}

// writeToFile writes data to a file and logs the operation.
func writeToFile(path string, data []byte, perm os.FileMode, logger *zap.Logger) error {
	if err := os.WriteFile(path, data, perm); err != nil {
		logger.Error("Failed to write file", zap.String("path", path), zap.Error(err))
		return err
	}
	logger.Debug("Successfully wrote file", zap.String("path", path))
	return nil
}
