// Package config reads and writes the hubsync TOML configuration file.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for hubsync.
type Config struct {
	Endpoint string `toml:"endpoint"` // service base URL
	RepoID   string `toml:"repo_id"`
	RepoType string `toml:"repo_type"` // "model", "dataset", or "space"
	Revision string `toml:"revision"`

	BaseDir   string `toml:"base_dir"`
	LogDir    string `toml:"log_dir"`
	TokenPath string `toml:"token_path"`

	// NumThreads bounds how many distinct files upload concurrently per
	// commit. Zero means the pipeline default.
	NumThreads int `toml:"num_threads"`

	History HistoryConfig `toml:"history"`
	Watch   WatchConfig   `toml:"watch"`
}

// HistoryConfig configures the push-history log.
// This uses a tagged union pattern - the Type field determines which other
// fields are relevant.
type HistoryConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// WatchConfig configures the scheduler.
type WatchConfig struct {
	Folder       string   `toml:"folder"`
	PathInRepo   string   `toml:"path_in_repo,omitempty"`
	EveryMinutes float64  `toml:"every_minutes"`
	Allow        []string `toml:"allow,omitempty"`
	Ignore       []string `toml:"ignore,omitempty"`
}

// NewConfig creates a Config with the provided values and default paths.
func NewConfig(endpoint, baseDir string) *Config {
	return &Config{
		Endpoint:  endpoint,
		RepoType:  "model",
		Revision:  "main",
		BaseDir:   baseDir,
		LogDir:    filepath.Join(baseDir, "log"),
		TokenPath: filepath.Join(baseDir, "token"),
		History: HistoryConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Watch: WatchConfig{
			EveryMinutes: 5,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided
// Config. Fails if one already exists.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
