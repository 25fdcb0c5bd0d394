// Package fs implements hub.FilesystemManager against the real filesystem.
package fs

import (
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"

	"hubsync/internal/hub"
)

// OSFilesystemManager performs actual filesystem operations using the os
// package.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a manager operating on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// ListFiles recursively lists regular files under root, returning
// slash-separated relative paths in sorted order. Symlinks, devices and other
// special files are skipped.
func (m *OSFilesystemManager) ListFiles(root string) ([]hub.FileInfo, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", root)
	}

	var files []hub.FileInfo
	err = filepath.WalkDir(root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("calculating relative path: %w", err)
		}
		files = append(files, hub.FileInfo{
			RelPath: filepath.ToSlash(rel),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadSeekCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("cannot open directory as file: %s", path)
	}
	return f, nil
}

// Compile-time check that OSFilesystemManager implements hub.FilesystemManager.
var _ hub.FilesystemManager = (*OSFilesystemManager)(nil)
