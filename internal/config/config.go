// Package config loads the market-insights service configuration.
package config

import (
	"errors"

	infraconfig "github.com/jonesrussell/market-insights/infrastructure/config"
	infragin "github.com/jonesrussell/market-insights/infrastructure/gin"
	"github.com/jonesrussell/market-insights/infrastructure/logger"
	"github.com/jonesrussell/market-insights/infrastructure/profiling"
	"github.com/jonesrussell/market-insights/infrastructure/redis"
	"github.com/jonesrussell/market-insights/internal/cache"
	"github.com/jonesrussell/market-insights/internal/database"
	"github.com/jonesrussell/market-insights/internal/llm"
	"github.com/jonesrussell/market-insights/internal/translation"
)

const (
	DefaultPath = "config.yml"

	defaultServiceName    = "market-insights"
	defaultServiceVersion = "0.1.0"
	defaultDBHost         = "localhost"
	defaultDBPort         = "5432"
	defaultDBUser         = "postgres"
	defaultDBName         = "market_insights"
	defaultRedisAddress   = "localhost:6379"
	defaultMigrationsPath = "migrations"
)

// Config is the full service configuration.
type Config struct {
	Service     ServiceConfig       `yaml:"service"`
	Server      infragin.Config     `yaml:"server"`
	Database    database.Config     `yaml:"database"`
	Redis       redis.Config        `yaml:"redis"`
	Cache       cache.Config        `yaml:"cache"`
	LLM         llm.AnthropicConfig `yaml:"llm"`
	Translation TranslationConfig   `yaml:"translation"`
	Auth        AuthConfig          `yaml:"auth"`
	Logging     logger.Config       `yaml:"logging"`
	Profiling   profiling.Config    `yaml:"profiling"`
}

// ServiceConfig identifies the service.
type ServiceConfig struct {
	Name           string `yaml:"name"`
	Version        string `yaml:"version"`
	MigrationsPath string `env:"MIGRATIONS_PATH" yaml:"migrations_path"`
}

// TranslationConfig combines pipeline and worker settings.
type TranslationConfig struct {
	translation.Config `yaml:",inline"`
	Worker             translation.WorkerConfig `yaml:"worker"`
}

// AuthConfig holds the admin route secret.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
}

// Load reads path, applies defaults and env overrides.
func Load(path string) (*Config, error) {
	return infraconfig.LoadWithDefaults[Config](path, setDefaults)
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	cfg.Cache.SetDefaults()
	cfg.Server.SetDefaults()
	cfg.Server.ServiceName = cfg.Service.Name
	cfg.Server.ServiceVersion = cfg.Service.Version
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = llm.DefaultModel
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = llm.DefaultMaxTokens
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = llm.DefaultTimeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	cfg.Translation.SetDefaults()
	if cfg.Translation.Worker.BatchSize <= 0 {
		cfg.Translation.Worker.BatchSize = cfg.Translation.BatchSize
	}
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.MigrationsPath == "" {
		s.MigrationsPath = defaultMigrationsPath
	}
}

func setDatabaseDefaults(d *database.Config) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == "" {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.DBName == "" {
		d.DBName = defaultDBName
	}
}

// PipelineConfig is the translation service configuration with the LLM
// call parameters filled in from the llm section.
func (c *Config) PipelineConfig() translation.Config {
	p := c.Translation.Config
	p.Model = c.LLM.Model
	p.Temperature = c.LLM.Temperature
	p.MaxTokens = c.LLM.MaxTokens
	return p
}

// Validate checks settings every command needs.
func (c *Config) Validate() error {
	return infraconfig.FirstError(
		infraconfig.Port("server.port", c.Server.Port),
		infraconfig.Required("database.host", c.Database.Host),
		infraconfig.Required("database.dbname", c.Database.DBName),
		infraconfig.LogLevel(c.Logging.Level),
		infraconfig.Positive("translation.max_retries", c.Translation.MaxRetries),
		infraconfig.Positive("translation.batch_size", c.Translation.BatchSize),
		infraconfig.Positive("cache.ttl", int64(c.Cache.TTL)),
	)
}

// ErrMissingAPIKey is returned by ValidateLLM when no key is configured.
var ErrMissingAPIKey = errors.New("llm.api_key (ANTHROPIC_API_KEY) is required")

// ValidateLLM checks settings needed by commands that call the model.
func (c *Config) ValidateLLM() error {
	if c.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
