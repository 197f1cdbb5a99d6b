package cmd

import (
	"fmt"

	"github.com/psybrarian/psybrarian/db"
	"github.com/psybrarian/psybrarian/internal/config"
	"github.com/psybrarian/psybrarian/internal/log"
)

// runMigrate applies pending database migrations.
func runMigrate(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	logger.Info("database schema up to date")
	return nil
}
