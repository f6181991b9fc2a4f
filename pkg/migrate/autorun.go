package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/nabd-ai/vertex-backend/pkg/config"
	"github.com/nabd-ai/vertex-backend/pkg/db"
	"github.com/nabd-ai/vertex-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations at boot in dev when
// VERTEX_AUTO_MIGRATE is set. SQLite test databases use gorm automigrate
// instead and are skipped.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if strings.EqualFold(cfg.DB.Driver, config.DBDriverSQLite) {
		logg.Warn(ctx, "skipping goose migrations on sqlite")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, nil)
	if err != nil {
		return err
	}

	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	for _, m := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{"version": m.Version, "file": m.Path}), "migration applied")
	}
	logg.Info(logg.WithField(ctx, "applied", len(applied)), "dev migrations complete")
	return nil
}
