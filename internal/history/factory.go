package history

import (
	"fmt"
	"os"
	"path/filepath"

	"hubsync/internal/config"
	"hubsync/internal/hub"
)

// NewHistoryFromConfig creates a hub.History based on the history config
// type.
func NewHistoryFromConfig(cfg config.HistoryConfig) (hub.History, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryHistory(), nil
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("sqlite history requires data_dir to be set")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating history data directory: %w", err)
		}
		return NewSQLiteHistory(filepath.Join(cfg.DataDir, "history.db"))
	default:
		return nil, fmt.Errorf("unknown history type: %s", cfg.Type)
	}
}
