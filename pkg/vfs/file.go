// Package vfs defines the virtual file objects that flow through a build pipeline.
package vfs

import (
	"io"
	"path/filepath"
)

// Kind identifies which payload a File carries.
type Kind int

const (
	KindNull      Kind = iota // No contents (placeholder entry)
	KindBuffer                // Contents held fully in memory
	KindDirectory             // Directory marker
	KindStream                // Live, unbuffered reader
)

// String returns a short name for the payload kind.
func (k Kind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindDirectory:
		return "directory"
	case KindStream:
		return "stream"
	default:
		return "null"
	}
}

// File is a virtual file travelling through the pipeline.
// Path is always absolute or relative to Cwd; Base is the directory that
// Relative() is computed against.
type File struct {
	Cwd      string        // Working directory the file was created from
	Base     string        // Base directory, usually the root of the source walk
	Path     string        // Full path of the file
	Contents []byte        // Buffer payload, nil unless Kind() == KindBuffer
	Stream   io.ReadCloser // Stream payload, nil unless Kind() == KindStream

	dir bool
}

// NewBuffer creates a buffer-mode file.
func NewBuffer(cwd, base, path string, contents []byte) *File {
	if contents == nil {
		contents = []byte{}
	}
	return &File{Cwd: cwd, Base: base, Path: path, Contents: contents}
}

// NewNull creates a file without contents.
func NewNull(cwd, base, path string) *File {
	return &File{Cwd: cwd, Base: base, Path: path}
}

// NewDirectory creates a directory marker.
func NewDirectory(cwd, base, path string) *File {
	return &File{Cwd: cwd, Base: base, Path: path, dir: true}
}

// NewStream creates a stream-mode file backed by r.
func NewStream(cwd, base, path string, r io.ReadCloser) *File {
	return &File{Cwd: cwd, Base: base, Path: path, Stream: r}
}

// Kind reports the payload kind of the file.
func (f *File) Kind() Kind {
	switch {
	case f.dir:
		return KindDirectory
	case f.Stream != nil:
		return KindStream
	case f.Contents != nil:
		return KindBuffer
	default:
		return KindNull
	}
}

func (f *File) IsDirectory() bool { return f.Kind() == KindDirectory }
func (f *File) IsStream() bool    { return f.Kind() == KindStream }
func (f *File) IsBuffer() bool    { return f.Kind() == KindBuffer }

// IsNull reports whether the file carries no payload. Directory markers are
// also null in the sense that they have no contents.
func (f *File) IsNull() bool {
	return f.Stream == nil && f.Contents == nil
}

// Relative returns Path relative to Base, falling back to Path itself when
// the two cannot be related.
func (f *File) Relative() string {
	if f.Base == "" {
		return f.Path
	}
	rel, err := filepath.Rel(f.Base, f.Path)
	if err != nil {
		return f.Path
	}
	return rel
}

func (f *File) Dirname() string  { return filepath.Dir(f.Path) }
func (f *File) Basename() string { return filepath.Base(f.Path) }
func (f *File) Extname() string  { return filepath.Ext(f.Path) }
