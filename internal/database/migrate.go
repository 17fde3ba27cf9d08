package database

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:blankimports // postgres:// driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       //nolint:blankimports // file:// source

	"github.com/jonesrussell/market-insights/infrastructure/logger"
)

// Migrator applies the SQL files under a migrations directory.
type Migrator struct {
	m    *migrate.Migrate
	path string
	log  logger.Logger
}

// NewMigrator opens a migrate instance for cfg. Relative paths are
// resolved against the working directory.
func NewMigrator(cfg Config, migrationsPath string, log logger.Logger) (*Migrator, error) {
	if abs, err := filepath.Abs(migrationsPath); err == nil {
		migrationsPath = abs
	}

	m, err := migrate.New("file://"+migrationsPath, cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return &Migrator{m: m, path: migrationsPath, log: log}, nil
}

// Up applies every pending migration.
func (r *Migrator) Up() error {
	if err := r.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.log.Info("No pending migrations", logger.String("migrations_path", r.path))
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}
	r.log.Info("Migrations applied successfully", logger.String("migrations_path", r.path))
	return nil
}

// Down rolls back steps migrations, at least one.
func (r *Migrator) Down(steps int) error {
	if steps <= 0 {
		steps = 1
	}
	if err := r.m.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.log.Info("No migrations to rollback", logger.String("migrations_path", r.path))
			return nil
		}
		return fmt.Errorf("rollback migrations: %w", err)
	}
	r.log.Info("Migrations rolled back successfully",
		logger.String("migrations_path", r.path),
		logger.Int("steps", steps),
	)
	return nil
}

// Version reports the applied version. A fresh database is version 0.
func (r *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get migration version: %w", err)
	}
	return version, dirty, nil
}

// Close releases the source and database handles.
func (r *Migrator) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}
