// Package cmd implements the market-insights command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
	"github.com/jonesrussell/market-insights/internal/bootstrap"
	"github.com/jonesrussell/market-insights/internal/config"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// cfgFile holds the --config flag.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "market-insights",
	Short: "Market research content API with LLM translation",
	Long: `market-insights serves localized market research content and
translates it into supported locales through a durable job queue.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is $CONFIG_PATH or ./config.yml)",
	)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "market-insights version %s\n", Version)
		},
	})

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(workerCommand())
	rootCmd.AddCommand(processQueueCommand())
	rootCmd.AddCommand(statsCommand())
	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(tokenCommand())
}

// loadConfig loads config and the logger every command starts from.
func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := bootstrap.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if Version != "dev" {
		cfg.Service.Version = Version
		cfg.Server.ServiceVersion = Version
	}

	log, err := bootstrap.CreateLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// withApp builds the full application, runs fn and tears it down.
func withApp(ctx context.Context, fn func(*bootstrap.App) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start", logger.Error(err))
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			log.Error("Failed to close resources", logger.Error(closeErr))
		}
	}()

	return fn(app)
}
