package config

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("https://hub.test", "/home/u/.hubsync")

	assert.Equal(t, "https://hub.test", cfg.Endpoint)
	assert.Equal(t, "model", cfg.RepoType)
	assert.Equal(t, "main", cfg.Revision)
	assert.Equal(t, filepath.Join("/home/u/.hubsync", "log"), cfg.LogDir)
	assert.Equal(t, filepath.Join("/home/u/.hubsync", "token"), cfg.TokenPath)
	assert.Equal(t, "sqlite", cfg.History.Type)
	assert.Equal(t, float64(5), cfg.Watch.EveryMinutes)
}

func TestManager_RoundTrip(t *testing.T) {
	cfg := NewConfig("https://hub.test", t.TempDir())
	cfg.RepoID = "acme/widgets"
	cfg.NumThreads = 8
	cfg.Watch.Folder = "/data/out"
	cfg.Watch.Allow = []string{"*.bin"}
	cfg.Watch.Ignore = []string{"*.tmp"}

	m := &Manager{}
	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf, cfg))

	got, err := m.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestManager_ReadInvalid(t *testing.T) {
	m := &Manager{}
	_, err := m.Read(bytes.NewBufferString("endpoint = [broken"))
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	t.Run("creates the file and its directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sub", "config.toml")
		cfg := NewConfig("https://hub.test", t.TempDir())

		require.NoError(t, Init(path, cfg))

		got, err := ReadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, cfg.Endpoint, got.Endpoint)
	})

	t.Run("refuses to overwrite an existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		cfg := NewConfig("https://hub.test", t.TempDir())
		require.NoError(t, Init(path, cfg))

		err := Init(path, cfg)
		assert.ErrorContains(t, err, "already exists")
	})
}

func TestReadFromFile_Missing(t *testing.T) {
	_, err := ReadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
