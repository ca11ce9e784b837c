// Package storage selects a status store implementation by driver name.
package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tymekw/kotori-notify/internal/storage/file"
	"github.com/tymekw/kotori-notify/internal/storage/postgres"
	"github.com/tymekw/kotori-notify/internal/tracker"
)

// Config selects and configures the store backend.
//
// Driver values:
//   - "file": append-only JSON Lines journal at Path
//   - "postgres": status_records table reached via DSN
type Config struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

// Open initializes the configured store.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (tracker.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "file":
		return file.Open(cfg.Path, nil, logger)
	case "postgres":
		return postgres.Open(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
