// Package archive persists raw page snapshots so past scrapes can be
// inspected when a detection looks wrong.
package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/tymekw/kotori-notify/internal/tracker"
)

// Config selects and configures the snapshot backend.
//
// Driver values:
//   - "none" (or empty): archiving disabled
//   - "local": files under Dir
//   - "gcs": objects in Bucket
type Config struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// Open initializes the configured archiver. Returns (nil, nil) when
// archiving is disabled.
func Open(ctx context.Context, cfg Config) (tracker.Archiver, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocal(cfg.Dir)
	case "gcs":
		return NewGCS(ctx, cfg.Bucket)
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}
