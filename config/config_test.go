package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HOST", "PORT", "ENVIRONMENT", "LOG_LEVEL", "LOG_FILE", "PROJECT_ID",
		"BROKER_URL", "QUEUE_NAME", "RESULT_BACKEND", "RESULT_EXPIRES", "WORKER_CONCURRENCY",
		"ASYNC_QUEUE_SIZE", "ASYNC_REJECT_THRESHOLD", "POLL_REFRESH_INTERVAL", "DEV_CORS_ORIGINS",
	} {
		// Setenv restores the original value after the test
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5000", cfg.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "memory://", cfg.Broker.URL)
	assert.Equal(t, "memory://", cfg.Results.URL)
	assert.True(t, cfg.BrokerIsMemory())
	assert.Equal(t, 3, cfg.Worker.Concurrency)
	assert.Equal(t, 24*time.Hour, cfg.Results.Expires)
	assert.Equal(t, 3*time.Second, cfg.Web.RefreshInterval)
	assert.Equal(t, int64(10485760), cfg.Fetch.MaxBytes)
	assert.Equal(t, "development", cfg.CORSConfig.Environment)
	assert.Contains(t, cfg.CORSConfig.DevelopmentOrigins, "http://localhost:3000")
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("BROKER_URL", "redis://localhost:6379/0")
	t.Setenv("RESULT_BACKEND", "datastore://my-project")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("DEV_CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.False(t, cfg.BrokerIsMemory())
	assert.Equal(t, "my-project", cfg.DatastoreProject())
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSConfig.DevelopmentOrigins)
}

func validConfig() *Config {
	return &Config{
		Port:    "5000",
		Broker:  BrokerConfig{URL: "memory://", QueueSize: 10, RejectThreshold: 0.8},
		Results: ResultConfig{URL: "memory://", Expires: time.Hour},
		Worker:  WorkerConfig{Concurrency: 1},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"redis everywhere", func(c *Config) {
			c.Broker.URL = "redis://localhost:6379"
			c.Results.URL = "rediss://localhost:6380"
		}, ""},
		{"unknown broker", func(c *Config) { c.Broker.URL = "amqp://localhost" }, "BROKER_URL"},
		{"broker without scheme", func(c *Config) { c.Broker.URL = "localhost:6379" }, "BROKER_URL"},
		{"unknown backend", func(c *Config) { c.Results.URL = "ironcache://" }, "RESULT_BACKEND"},
		{"datastore without project", func(c *Config) { c.Results.URL = "datastore://" }, "needs a project"},
		{"datastore with PROJECT_ID", func(c *Config) {
			c.Results.URL = "datastore://"
			c.ProjectID = "p"
		}, ""},
		{"no workers", func(c *Config) { c.Worker.Concurrency = 0 }, "WORKER_CONCURRENCY"},
		{"bad threshold", func(c *Config) { c.Broker.RejectThreshold = 1.5 }, "ASYNC_REJECT_THRESHOLD"},
		{"no retention", func(c *Config) { c.Results.Expires = 0 }, "RESULT_EXPIRES"},
		{"cache outlives retention", func(c *Config) { c.Results.CacheTTL = 2 * time.Hour }, "RESULT_CACHE_TTL"},
		{"cache as long as retention", func(c *Config) { c.Results.CacheTTL = time.Hour }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateForWorker(t *testing.T) {
	cfg := validConfig()
	assert.ErrorContains(t, cfg.ValidateForWorker(), "BROKER_URL")

	cfg.Broker.URL = "redis://localhost:6379"
	assert.ErrorContains(t, cfg.ValidateForWorker(), "RESULT_BACKEND")

	cfg.Results.URL = "redis://localhost:6379"
	assert.NoError(t, cfg.ValidateForWorker())
}
