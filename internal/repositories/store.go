package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// OpenStore builds the [models.Store] selected by the database driver setting.
func OpenStore(ctx context.Context, cfg shared.DatabaseConfig) (models.Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN)
	case "sqlite", "":
		return OpenSQLiteStore(cfg.Path, cfg.MaxOpenConns, cfg.MaxIdleConns)
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", shared.ErrInvalidConfig, cfg.Driver)
	}
}
