package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
	"github.com/jonesrussell/market-insights/infrastructure/retry"
	"github.com/jonesrussell/market-insights/internal/database"
)

// SetupDatabase connects to Postgres, retrying while it comes up.
func SetupDatabase(ctx context.Context, cfg database.Config, log logger.Logger) (*sqlx.DB, error) {
	policy := retry.DefaultConfig()
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn("Database not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Error(err),
		)
	}

	var db *sqlx.DB
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		conn, connErr := database.NewPostgresConnection(ctx, cfg)
		if connErr != nil {
			return connErr
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	log.Info("Database connected",
		logger.String("host", cfg.Host),
		logger.String("database", cfg.DBName),
	)
	return db, nil
}
