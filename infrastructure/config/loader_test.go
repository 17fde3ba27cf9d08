package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/market-insights/infrastructure/config"
)

type nested struct {
	Timeout time.Duration `env:"TEST_NESTED_TIMEOUT" yaml:"timeout"`
	Rate    float64       `env:"TEST_NESTED_RATE"    yaml:"rate"`
}

type sample struct {
	Name    string   `env:"TEST_SAMPLE_NAME"    yaml:"name"`
	Port    int      `env:"TEST_SAMPLE_PORT"    yaml:"port"`
	Enabled bool     `env:"TEST_SAMPLE_ENABLED" yaml:"enabled"`
	Origins []string `env:"TEST_SAMPLE_ORIGINS" yaml:"origins"`
	Nested  nested   `yaml:"nested"`
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeConfig(t, "name: from-yaml\nport: 8080\nnested:\n  timeout: 2s\n")
	t.Setenv("TEST_SAMPLE_PORT", "9090")
	t.Setenv("TEST_SAMPLE_ORIGINS", "a, b")
	t.Setenv("TEST_NESTED_RATE", "0.5")

	cfg, err := config.Load[sample](path)
	require.NoError(t, err)

	assert.Equal(t, "from-yaml", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"a", "b"}, cfg.Origins)
	assert.Equal(t, 2*time.Second, cfg.Nested.Timeout)
	assert.InDelta(t, 0.5, cfg.Nested.Rate, 1e-9)
}

func TestLoad_MissingFileUsesEnvOnly(t *testing.T) {
	t.Setenv("TEST_SAMPLE_NAME", "env-only")
	t.Setenv("TEST_SAMPLE_ENABLED", "yes")

	cfg, err := config.Load[sample](filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, "env-only", cfg.Name)
	assert.True(t, cfg.Enabled)
}

func TestLoadWithDefaults_EnvBeatsDefaults(t *testing.T) {
	path := writeConfig(t, "name: x\n")
	t.Setenv("TEST_NESTED_TIMEOUT", "7s")

	cfg, err := config.LoadWithDefaults(path, func(c *sample) {
		c.Port = 1234
		c.Nested.Timeout = time.Second
	})
	require.NoError(t, err)
	assert.Equal(t, 1234, cfg.Port)
	assert.Equal(t, 7*time.Second, cfg.Nested.Timeout)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "name: [unterminated\n")
	_, err := config.Load[sample](path)
	require.Error(t, err)
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.yml", config.GetConfigPath("config.yml"))
	t.Setenv(config.ConfigPathEnv, "/etc/app.yml")
	assert.Equal(t, "/etc/app.yml", config.GetConfigPath("config.yml"))
}

func TestValidators(t *testing.T) {
	assert.Error(t, config.Required("x", ""))
	assert.NoError(t, config.Required("x", "y"))
	assert.Error(t, config.Port("p", 0))
	assert.NoError(t, config.Port("p", 80))
	assert.Error(t, config.Positive("n", 0))
	assert.NoError(t, config.Positive("f", 0.1))
	assert.Error(t, config.LogLevel("loud"))
	assert.NoError(t, config.FirstError(nil, nil))
}
