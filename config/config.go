/*
Package config loads the feed queue configuration from the environment.

Every setting has an env tag and a default, so an empty environment gives a
working single-process setup: in-memory broker and result backend with an
embedded worker pool, listening on 0.0.0.0:5000.
*/
package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all application configuration
type Config struct {
	Host        string `env:"HOST" env-default:"0.0.0.0"`
	Port        string `env:"PORT" env-default:"5000"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	LogFile     string `env:"LOG_FILE"`
	ProjectID   string `env:"PROJECT_ID"`

	Broker  BrokerConfig
	Results ResultConfig
	Worker  WorkerConfig
	Fetch   FetchConfig
	Web     WebConfig

	// Rate limiting configuration
	RateLimitRequestsPerMinute float64       `env:"RATE_LIMIT_RPM" env-default:"60"`
	RateLimitBurst             int           `env:"RATE_LIMIT_BURST" env-default:"10"`
	ClientCleanupInterval      time.Duration `env:"CLIENT_CLEANUP_INTERVAL" env-default:"1m"`

	CORSConfig CORSConfig
}

// BrokerConfig selects and tunes the job broker
type BrokerConfig struct {
	URL         string        `env:"BROKER_URL" env-default:"memory://"`
	Queue       string        `env:"QUEUE_NAME" env-default:"feeds"`
	PollTimeout time.Duration `env:"BROKER_POLL_TIMEOUT" env-default:"1s"`
	// In-memory broker backpressure
	QueueSize       int           `env:"ASYNC_QUEUE_SIZE" env-default:"50"`
	Backpressure    bool          `env:"ASYNC_BACKPRESSURE" env-default:"true"`
	RejectThreshold float64       `env:"ASYNC_REJECT_THRESHOLD" env-default:"0.8"`
	WaitTimeout     time.Duration `env:"ASYNC_WAIT_TIMEOUT" env-default:"5s"`
}

// ResultConfig selects the result backend and its retention
type ResultConfig struct {
	URL      string        `env:"RESULT_BACKEND" env-default:"memory://"`
	Expires  time.Duration `env:"RESULT_EXPIRES" env-default:"24h"`
	CacheTTL time.Duration `env:"RESULT_CACHE_TTL" env-default:"30m"`
}

// WorkerConfig sizes the worker pool
type WorkerConfig struct {
	Concurrency int `env:"WORKER_CONCURRENCY" env-default:"3"`
}

// FetchConfig tunes the feed fetcher
type FetchConfig struct {
	Timeout   time.Duration `env:"FETCH_TIMEOUT" env-default:"30s"`
	UserAgent string        `env:"FETCH_USER_AGENT" env-default:"feed-queue/1.0"`
	MaxBytes  int64         `env:"FETCH_MAX_BYTES" env-default:"10485760"`
}

// WebConfig holds front end settings
type WebConfig struct {
	RefreshInterval time.Duration `env:"POLL_REFRESH_INTERVAL" env-default:"3s"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	// Environment-specific settings, copied from Config.Environment by Load
	Environment string
	// Allowed origins based on environment
	DevelopmentOrigins []string `env:"DEV_CORS_ORIGINS" env-default:"http://localhost:3000,http://localhost:3001,http://127.0.0.1:3000,http://127.0.0.1:3001,http://localhost:5000"`
	StagingOrigins     []string `env:"STAGING_CORS_ORIGINS" env-default:"https://staging.yourdomain.com,https://staging-api.yourdomain.com"`
	ProductionOrigins  []string `env:"PROD_CORS_ORIGINS" env-default:"https://yourdomain.com,https://www.yourdomain.com,https://api.yourdomain.com"`
	// Additional CORS settings
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" env-default:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" env-default:"Content-Type,Authorization,X-Requested-With,X-Request-ID,Accept,Origin,Cache-Control"`
	ExposedHeaders   []string `env:"CORS_EXPOSED_HEADERS" env-default:"X-Request-ID"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" env-default:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" env-default:"86400"`
	// Dynamic origin validation
	AllowSubdomains bool     `env:"CORS_ALLOW_SUBDOMAINS" env-default:"false"`
	AllowedDomains  []string `env:"CORS_ALLOWED_DOMAINS"`
}

// Load reads the configuration from the environment and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.CORSConfig.Environment = cfg.Environment

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Addr returns host:port for the HTTP server
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}

	scheme, err := Scheme(c.Broker.URL)
	if err != nil {
		return fmt.Errorf("BROKER_URL: %w", err)
	}
	if scheme != "memory" && scheme != "redis" && scheme != "rediss" {
		return fmt.Errorf("BROKER_URL: unsupported scheme %q", scheme)
	}

	scheme, err = Scheme(c.Results.URL)
	if err != nil {
		return fmt.Errorf("RESULT_BACKEND: %w", err)
	}
	switch scheme {
	case "memory", "redis", "rediss":
	case "datastore":
		if c.DatastoreProject() == "" {
			return fmt.Errorf("RESULT_BACKEND: datastore needs a project, set datastore://<project> or PROJECT_ID")
		}
	default:
		return fmt.Errorf("RESULT_BACKEND: unsupported scheme %q", scheme)
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.Broker.QueueSize < 1 {
		return fmt.Errorf("ASYNC_QUEUE_SIZE must be at least 1")
	}
	if c.Broker.RejectThreshold <= 0 || c.Broker.RejectThreshold > 1 {
		return fmt.Errorf("ASYNC_REJECT_THRESHOLD must be in (0, 1]")
	}
	if c.Results.Expires <= 0 {
		return fmt.Errorf("RESULT_EXPIRES must be positive")
	}
	if c.Results.CacheTTL > c.Results.Expires {
		return fmt.Errorf("RESULT_CACHE_TTL (%v) must not exceed RESULT_EXPIRES (%v)", c.Results.CacheTTL, c.Results.Expires)
	}
	return nil
}

// ValidateForWorker adds the checks for the standalone worker process.
// An in-memory broker or backend would not be shared with the web process.
func (c *Config) ValidateForWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.BrokerIsMemory() {
		return fmt.Errorf("BROKER_URL: the worker process needs a shared broker, got memory://")
	}
	if scheme, _ := Scheme(c.Results.URL); scheme == "memory" {
		return fmt.Errorf("RESULT_BACKEND: the worker process needs a shared backend, got memory://")
	}
	return nil
}

// BrokerIsMemory reports whether jobs stay in this process
func (c *Config) BrokerIsMemory() bool {
	scheme, _ := Scheme(c.Broker.URL)
	return scheme == "memory"
}

// DatastoreProject returns the project from datastore://<project>, falling back to PROJECT_ID
func (c *Config) DatastoreProject() string {
	u, err := url.Parse(c.Results.URL)
	if err == nil && u.Host != "" {
		return u.Host
	}
	return c.ProjectID
}

// Scheme returns the lower-cased scheme of a backend URL
func Scheme(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("missing scheme in %q", raw)
	}
	return strings.ToLower(u.Scheme), nil
}
