package hub

import (
	"io"
	"time"
)

// FileInfo describes one regular file found under a watched folder.
type FileInfo struct {
	// RelPath is the slash-separated path relative to the listing root.
	RelPath string
	Size    int64
	ModTime time.Time
}

// FilesystemManager abstracts file access so the pipeline and the scheduler
// are testable without touching the real filesystem.
type FilesystemManager interface {
	// ListFiles recursively lists regular files under root in deterministic
	// (sorted by RelPath) order. Symlinks and special files are skipped.
	ListFiles(root string) ([]FileInfo, error)

	// Open opens a file for reading. The returned handle must be seekable so
	// retried transfers can rewind to their starting position.
	Open(path string) (io.ReadSeekCloser, error)
}
