package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns the default filesystem locations hubsync uses.
func GetDefaults() (map[string]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("determining home directory: %w", err)
	}

	baseDir := filepath.Join(home, ".hubsync")
	return map[string]string{
		"base_dir":    baseDir,
		"config_path": filepath.Join(baseDir, "config.toml"),
	}, nil
}
