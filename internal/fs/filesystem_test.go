package fs

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestOSFilesystemManager_ListFiles(t *testing.T) {
	t.Run("lists regular files recursively in sorted order", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "b.txt"), "bb")
		writeFile(t, filepath.Join(dir, "a.txt"), "a")
		writeFile(t, filepath.Join(dir, "sub", "c.txt"), "ccc")

		m := NewOSFilesystemManager()
		files, err := m.ListFiles(dir)
		require.NoError(t, err)

		require.Len(t, files, 3)
		assert.Equal(t, "a.txt", files[0].RelPath)
		assert.Equal(t, "b.txt", files[1].RelPath)
		assert.Equal(t, "sub/c.txt", files[2].RelPath)
		assert.Equal(t, int64(3), files[2].Size)
		assert.False(t, files[0].ModTime.IsZero())
	})

	t.Run("empty directory lists nothing", func(t *testing.T) {
		m := NewOSFilesystemManager()
		files, err := m.ListFiles(t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("missing folder fails", func(t *testing.T) {
		m := NewOSFilesystemManager()
		_, err := m.ListFiles(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("file path instead of directory fails", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "f.txt")
		writeFile(t, path, "x")

		m := NewOSFilesystemManager()
		_, err := m.ListFiles(path)
		assert.Error(t, err)
	})
}

func TestOSFilesystemManager_Open(t *testing.T) {
	t.Run("opens a file for seekable reading", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "f.txt")
		writeFile(t, path, "hello")

		m := NewOSFilesystemManager()
		f, err := m.Open(path)
		require.NoError(t, err)
		defer f.Close()

		content, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(content))

		_, err = f.Seek(0, io.SeekStart)
		require.NoError(t, err)
		again, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(again))
	})

	t.Run("refuses directories", func(t *testing.T) {
		m := NewOSFilesystemManager()
		_, err := m.Open(t.TempDir())
		assert.Error(t, err)
	})
}
