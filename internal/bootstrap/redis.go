package bootstrap

import (
	"context"
	"fmt"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
	infraredis "github.com/jonesrussell/market-insights/infrastructure/redis"
	"github.com/jonesrussell/market-insights/internal/cache"
	"github.com/jonesrussell/market-insights/internal/config"
	"github.com/jonesrussell/market-insights/internal/telemetry"
)

// SetupCache builds the cache middleware. With caching disabled the
// manager is nil and the middleware passes every call through. A Redis
// that is down at startup is not fatal: the manager reconnects in the
// background behind its circuit breaker.
func SetupCache(
	ctx context.Context,
	cfg *config.Config,
	metrics *telemetry.Provider,
	log logger.Logger,
) (*infraredis.Manager, *cache.Middleware, error) {
	if !cfg.Cache.Enabled {
		log.Info("Cache disabled")
		return nil, cache.New(nil, cfg.Cache, log), nil
	}

	manager, err := infraredis.NewManager(cfg.Redis, log, infraredis.WithStateObserver(metrics.SetCircuitState))
	if err != nil {
		return nil, nil, fmt.Errorf("create redis manager: %w", err)
	}

	if connErr := manager.Connect(ctx); connErr != nil {
		log.Warn("Redis not available, cache degraded until it recovers",
			logger.String("redis_address", cfg.Redis.Address),
			logger.Error(connErr),
		)
	} else {
		log.Info("Cache connected", logger.String("redis_address", cfg.Redis.Address))
	}

	store := cache.NewRedisStore(manager, cfg.Cache.OperationTimeout)
	return manager, cache.New(store, cfg.Cache, log, cache.WithRecorder(metrics)), nil
}
