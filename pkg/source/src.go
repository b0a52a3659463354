// Package source reads files from disk into pipeline files and writes
// pipeline output back to disk.
package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"iconfont/pkg/ignore"
	"iconfont/pkg/vfs"

	"go.uber.org/zap"
)

// Options controls how Src walks and reads its roots.
type Options struct {
	MaxFileSizeKB  int      // Files larger than this are skipped; 0 disables the limit.
	MaxWorkers     int      // Concurrent file readers; <= 0 uses runtime.NumCPU().
	IgnoreFiles    []string // Extra ignore files applied before each root's own .iconfontignore.
	IgnorePatterns []string // Patterns applied after every ignore file.
	Exclude        []string // Directories never walked, such as the destination.
	ExcludeNames   []string // Base-name globs of directories never walked.
}

// Src walks roots and returns their contents as buffer files, sorted by
// path. Sub-directories become directory markers. Each root is the Base of
// the files found beneath it; a root that is a file uses its parent.
func Src(roots []string, opts Options, logger *zap.Logger) ([]*vfs.File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	var (
		files []*vfs.File
		jobs  []readJob
	)
	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			logger.Warn("Failed to get absolute path", zap.String("path", root), zap.Error(err))
			continue
		}

		info, err := os.Stat(absRoot)
		if err != nil {
			logger.Error("Source path cannot be accessed", zap.String("path", absRoot), zap.Error(err))
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}

		if !info.IsDir() {
			if tooLarge(info, opts.MaxFileSizeKB) {
				logger.Debug("Skipping file due to size limit", zap.String("filePath", absRoot), zap.Int64("sizeBytes", info.Size()))
				continue
			}
			jobs = append(jobs, readJob{path: absRoot, base: filepath.Dir(absRoot)})
			continue
		}

		matcher, err := loadMatcher(absRoot, opts, logger)
		if err != nil {
			return nil, err
		}
		dirs, found, err := walkRoot(absRoot, matcher, excluded(opts.Exclude, opts.ExcludeNames), opts.MaxFileSizeKB, logger)
		if err != nil {
			return nil, err
		}
		for _, d := range dirs {
			files = append(files, vfs.NewDirectory(cwd, absRoot, d))
		}
		jobs = append(jobs, found...)
	}

	read := readConcurrently(jobs, cwd, opts.MaxWorkers, logger)
	files = append(files, read...)

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	logger.Debug("Collected source files", zap.Int("files", len(files)))
	return files, nil
}

type readJob struct {
	path string
	base string
}

func loadMatcher(root string, opts Options, logger *zap.Logger) (*ignore.Matcher, error) {
	paths := append(append([]string(nil), opts.IgnoreFiles...), filepath.Join(root, ignore.FileName))
	m, err := ignore.Load(logger, paths...)
	if err != nil {
		logger.Error("Failed to load ignore patterns", zap.Error(err))
		return nil, fmt.Errorf("failed to load ignore patterns: %w", err)
	}
	if len(opts.IgnorePatterns) > 0 {
		m.CompileLines(opts.IgnorePatterns...)
	}
	return m, nil
}

// walkRoot returns the sub-directories and the files to read under root.
func walkRoot(root string, m *ignore.Matcher, exclude func(string) bool, maxFileSizeKB int, logger *zap.Logger) ([]string, []readJob, error) {
	var (
		dirs []string
		jobs []readJob
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Error accessing path during traversal", zap.String("path", path), zap.Error(err))
			return nil
		}
		if path == root {
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			if exclude(path) {
				logger.Debug("Skipping excluded directory", zap.String("directory", path))
				return filepath.SkipDir
			}
			if m.Match(rel + "/") {
				logger.Debug("Skipping ignored directory", zap.String("directory", path))
				return filepath.SkipDir
			}
			dirs = append(dirs, path)
			return nil
		}

		if rel == ignore.FileName || m.Match(rel) {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("Failed to get file info during traversal", zap.String("filePath", path), zap.Error(err))
			return nil
		}
		if tooLarge(info, maxFileSizeKB) {
			logger.Debug("Skipping file due to size limit", zap.String("filePath", path), zap.Int64("sizeBytes", info.Size()))
			return nil
		}

		jobs = append(jobs, readJob{path: path, base: root})
		return nil
	})
	if err != nil {
		logger.Error("Error during file traversal", zap.Error(err))
		return nil, nil, err
	}
	return dirs, jobs, nil
}

// excluded reports whether a directory is one of paths or has a base name
// matching one of names.
func excluded(paths, names []string) func(string) bool {
	abs := make(map[string]bool, len(paths))
	for _, p := range paths {
		if a, err := filepath.Abs(p); err == nil {
			abs[a] = true
		}
	}
	return func(dir string) bool {
		if abs[dir] {
			return true
		}
		base := filepath.Base(dir)
		for _, pattern := range names {
			if ok, _ := filepath.Match(pattern, base); ok {
				return true
			}
		}
		return false
	}
}

func tooLarge(info fs.FileInfo, maxFileSizeKB int) bool {
	return maxFileSizeKB > 0 && info.Size() > int64(maxFileSizeKB)*1024
}

// readConcurrently loads every job with a pool of workers. Unreadable files
// are logged and dropped.
func readConcurrently(jobs []readJob, cwd string, maxWorkers int, logger *zap.Logger) []*vfs.File {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	queue := make(chan readJob, len(jobs))
	results := make(chan *vfs.File, len(jobs))
	var wg sync.WaitGroup

	for w := 0; w < maxWorkers; w++ {
		wg.Add(1)
		go worker(w, queue, results, cwd, &wg, logger.With(zap.Int("workerID", w)))
	}

	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	go func() {
		wg.Wait()
		close(results)
	}()

	files := make([]*vfs.File, 0, len(jobs))
	for f := range results {
		files = append(files, f)
	}
	return files
}

func worker(id int, jobs <-chan readJob, results chan<- *vfs.File, cwd string, wg *sync.WaitGroup, logger *zap.Logger) {
	defer wg.Done()
	for j := range jobs {
		contents, err := os.ReadFile(j.path)
		if err != nil {
			logger.Error("Worker failed to read file", zap.String("filePath", j.path), zap.Error(err))
			continue
		}
		results <- vfs.NewBuffer(cwd, j.base, j.path, contents)
	}
	logger.Debug("Worker finished", zap.Int("workerID", id))
}
