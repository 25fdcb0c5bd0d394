package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveToken(t *testing.T) {
	t.Run("environment variable wins over the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token")
		require.NoError(t, SaveToken(path, "file-token"))
		t.Setenv("HUBSYNC_TOKEN", "env-token")

		tok, err := ResolveToken(path)
		require.NoError(t, err)
		assert.Equal(t, "env-token", tok)
	})

	t.Run("falls back to the token file", func(t *testing.T) {
		t.Setenv("HUBSYNC_TOKEN", "")
		path := filepath.Join(t.TempDir(), "token")
		require.NoError(t, SaveToken(path, "file-token"))

		tok, err := ResolveToken(path)
		require.NoError(t, err)
		assert.Equal(t, "file-token", tok)
	})

	t.Run("missing file means anonymous access", func(t *testing.T) {
		t.Setenv("HUBSYNC_TOKEN", "")
		tok, err := ResolveToken(filepath.Join(t.TempDir(), "nope"))
		require.NoError(t, err)
		assert.Empty(t, tok)
	})

	t.Run("surrounding whitespace is trimmed", func(t *testing.T) {
		t.Setenv("HUBSYNC_TOKEN", "")
		path := filepath.Join(t.TempDir(), "token")
		require.NoError(t, os.WriteFile(path, []byte("  tok-with-space \n"), 0600))

		tok, err := ResolveToken(path)
		require.NoError(t, err)
		assert.Equal(t, "tok-with-space", tok)
	})
}

func TestSaveToken(t *testing.T) {
	t.Run("writes owner-only and creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "token")
		require.NoError(t, SaveToken(path, "secret"))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "secret\n", string(content))
	})

	t.Run("empty token is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token")
		assert.Error(t, SaveToken(path, "  "))
	})
}
