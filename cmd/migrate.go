package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/market-insights/internal/database"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withMigrator(func(m *database.Migrator) error { return m.Down(steps) })
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(_ *cobra.Command, _ []string) error {
				return withMigrator(func(m *database.Migrator) error { return m.Up() })
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(func(m *database.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

// withMigrator needs only the database section, so migrations run
// without an LLM key or Redis.
func withMigrator(fn func(*database.Migrator) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	m, err := database.NewMigrator(cfg.Database, cfg.Service.MigrationsPath, log)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	return fn(m)
}
