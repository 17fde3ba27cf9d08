package bootstrap

import (
	"fmt"

	infraconfig "github.com/jonesrussell/market-insights/infrastructure/config"
	"github.com/jonesrussell/market-insights/infrastructure/logger"
	"github.com/jonesrussell/market-insights/internal/config"
)

// LoadConfig loads and validates the configuration. An empty path falls
// back to $CONFIG_PATH, then config.yml.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = infraconfig.GetConfigPath(config.DefaultPath)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// CreateLogger builds the service logger with service and version fields.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(
		logger.String("service", cfg.Service.Name),
		logger.String("version", cfg.Service.Version),
	), nil
}
