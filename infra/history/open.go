package history

import (
	"fmt"

	"github.com/kilianp07/buildopt/config"
	"github.com/kilianp07/buildopt/core/history"
)

// Open returns the store selected by cfg, or history.Nop when no path is
// configured.
func Open(cfg config.HistoryConfig) (history.Store, error) {
	if cfg.Path == "" {
		return history.Nop{}, nil
	}
	switch cfg.Backend {
	case "", "jsonl":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown history backend %s", cfg.Backend)
	}
}
