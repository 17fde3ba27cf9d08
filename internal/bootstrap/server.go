package bootstrap

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	infragin "github.com/jonesrussell/market-insights/infrastructure/gin"
	"github.com/jonesrussell/market-insights/infrastructure/logger"
	"github.com/jonesrussell/market-insights/internal/api"
	"github.com/jonesrussell/market-insights/internal/translation"
)

// SetupHTTPServer builds the API server with its health checks.
func (a *App) SetupHTTPServer() *infragin.Server {
	handler := api.NewHandler(a.Translation, a.Jobs, a.Usage, a.Content, a.Log)

	builder := infragin.NewServerBuilder(a.Config.Service.Name, a.Config.Server).
		WithLogger(a.Log).
		WithVersion(a.Config.Service.Version).
		WithHealthCheck("database", infragin.PingChecker("database", true, a.DB.PingContext)).
		WithRoutes(func(router *gin.Engine) {
			handler.Register(router, api.RouteOptions{
				JWTSecret:  a.Config.Auth.JWTSecret,
				RouteCache: a.Cache,
				Metrics:    a.Metrics.Handler(),
			})
		})

	if a.Redis != nil {
		builder.WithHealthCheck("redis", infragin.PingChecker("redis", false, a.Redis.Ping))
	}

	if a.Config.Auth.JWTSecret == "" {
		a.Log.Warn("auth.jwt_secret is empty, admin routes are unprotected")
	}
	return builder.Build()
}

// Serve runs the HTTP server until ctx ends. With withWorker set the
// queue worker runs alongside it and stops first on shutdown.
func (a *App) Serve(ctx context.Context, withWorker bool) error {
	server := a.SetupHTTPServer()

	if withWorker {
		worker := a.Worker()
		worker.Start(ctx)
		defer worker.Stop()
	}

	a.Log.Info("Starting HTTP server",
		logger.String("host", a.Config.Server.Host),
		logger.Int("port", a.Config.Server.Port),
		logger.Bool("worker", withWorker),
	)

	if err := server.Run(ctx); err != nil {
		a.Log.Error("Server error", logger.Error(err))
		return fmt.Errorf("server error: %w", err)
	}

	a.Log.Info("Server exited")
	return nil
}

// RunWorker polls the queue until ctx ends.
func (a *App) RunWorker(ctx context.Context) error {
	worker := a.Worker()
	worker.Start(ctx)
	a.Log.Info("Translation worker running")

	<-ctx.Done()
	worker.Stop()
	a.Log.Info("Translation worker exited")
	return nil
}

// ProcessQueue runs one batch. Jobs whose outcome could not be
// persisted turn into an error so scripted runs exit non-zero.
func (a *App) ProcessQueue(ctx context.Context, batchSize int) (*translation.BatchResult, error) {
	result, err := a.Translation.ProcessTranslationQueue(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("process queue: %w", err)
	}
	if result.Errors > 0 {
		return result, fmt.Errorf("process queue: %d jobs could not be persisted", result.Errors)
	}
	return result, nil
}
