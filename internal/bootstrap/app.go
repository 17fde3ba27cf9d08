// Package bootstrap wires the market-insights components and runs them.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
	"github.com/jonesrussell/market-insights/infrastructure/profiling"
	infraredis "github.com/jonesrussell/market-insights/infrastructure/redis"
	"github.com/jonesrussell/market-insights/internal/cache"
	"github.com/jonesrussell/market-insights/internal/config"
	"github.com/jonesrussell/market-insights/internal/content"
	"github.com/jonesrussell/market-insights/internal/database"
	"github.com/jonesrussell/market-insights/internal/llm"
	"github.com/jonesrussell/market-insights/internal/telemetry"
	"github.com/jonesrussell/market-insights/internal/translation"
)

// App holds the wired components shared by every command.
type App struct {
	Config   *config.Config
	Log      logger.Logger
	Profiler *profiling.Profiler

	DB      *sqlx.DB
	Redis   *infraredis.Manager
	Cache   *cache.Middleware
	Metrics *telemetry.Provider

	Jobs        *database.JobRepository
	Usage       *database.UsageLogRepository
	Translation *translation.Service
	Content     *content.Service
}

// New connects the dependencies in order: profiling, metrics, database,
// cache, model client, then the services on top of them.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	if err := cfg.ValidateLLM(); err != nil {
		return nil, err
	}

	profiler, err := profiling.Start(cfg.Profiling, cfg.Service.Name, cfg.Service.Version, log)
	if err != nil {
		return nil, fmt.Errorf("start profiling: %w", err)
	}
	app := &App{Config: cfg, Log: log, Profiler: profiler, Metrics: telemetry.NewProvider()}

	db, err := SetupDatabase(ctx, cfg.Database, log)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.DB = db

	app.Redis, app.Cache, err = SetupCache(ctx, cfg, app.Metrics, log)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	client, err := llm.NewAnthropicClient(cfg.LLM, log)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	app.Jobs = database.NewJobRepository(db)
	app.Usage = database.NewUsageLogRepository(db)
	app.Translation = translation.NewService(
		app.Jobs,
		database.NewPromptTemplateRepository(db),
		app.Usage,
		client,
		cfg.PipelineConfig(),
		log,
		translation.WithRecorder(app.Metrics),
		translation.WithInvalidator(app.Cache),
	)
	app.Content = content.NewService(database.NewContentRepository(db), app.Cache, log)

	return app, nil
}

// Worker returns a queue worker bound to the translation service.
func (a *App) Worker() *translation.Worker {
	return translation.NewWorker(a.Translation, a.Jobs, a.Config.Translation.Worker, a.Log)
}

// Close releases connections in reverse order of New.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if err := a.Profiler.Stop(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
