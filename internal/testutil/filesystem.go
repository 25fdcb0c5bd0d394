package testutil

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"hubsync/internal/hub"
)

// MemFS is an in-memory hub.FilesystemManager for tests.
type MemFS struct {
	mu    sync.Mutex
	files map[string]memFile
}

type memFile struct {
	content []byte
	modTime time.Time
}

// NewMemFS creates an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{files: make(map[string]memFile)}
}

// WriteFile creates or replaces a file. path uses forward slashes.
func (m *MemFS) WriteFile(path string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = memFile{content: append([]byte(nil), content...), modTime: modTime}
}

// Remove deletes a file.
func (m *MemFS) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

// ListFiles lists files under root in sorted relative order.
func (m *MemFS) ListFiles(root string) ([]hub.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := strings.TrimRight(root, "/") + "/"
	var out []hub.FileInfo
	for path, f := range m.files {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		out = append(out, hub.FileInfo{
			RelPath: strings.TrimPrefix(path, prefix),
			Size:    int64(len(f.content)),
			ModTime: f.modTime,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}

// Open opens a file for reading.
func (m *MemFS) Open(path string) (io.ReadSeekCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return nopSeekCloser{bytes.NewReader(f.content)}, nil
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }

// Compile-time check that MemFS implements hub.FilesystemManager.
var _ hub.FilesystemManager = (*MemFS)(nil)
