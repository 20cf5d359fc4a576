/*
Package container wires the feed queue services together.

Build reads the configuration, opens the broker and the result backend it
names, and registers every service under a well-known name. Typed getters
give main and cmd/worker what they need without reaching into the wiring.
Close releases everything in reverse order of construction.
*/
package container

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"cloud.google.com/go/datastore"
	"github.com/Nexora-Open-Source/feed-queue/cache"
	"github.com/Nexora-Open-Source/feed-queue/config"
	"github.com/Nexora-Open-Source/feed-queue/feed"
	"github.com/Nexora-Open-Source/feed-queue/handlers"
	"github.com/Nexora-Open-Source/feed-queue/handlers/health"
	"github.com/Nexora-Open-Source/feed-queue/queue"
	"github.com/Nexora-Open-Source/feed-queue/tasks"
	"github.com/Nexora-Open-Source/feed-queue/web"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	ServiceBroker   = "broker"
	ServiceBackend  = "backend"
	ServiceRegistry = "registry"
	ServiceClient   = "client"
	ServiceCache    = "cache"
	ServiceHandler  = "handler"
	ServiceHealth   = "health"
	ServiceWorker   = "worker"
)

// Container holds all service dependencies
type Container struct {
	mu       sync.RWMutex
	services map[string]interface{}
	closers  []func() error
	Config   *config.Config
}

// NewContainer creates an empty container for cfg
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		services: make(map[string]interface{}),
		Config:   cfg,
	}
}

// Register registers a service instance
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// Get retrieves a service by name
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if service, exists := c.services[name]; exists {
		return service, nil
	}
	return nil, fmt.Errorf("service %s not found", name)
}

func (c *Container) onClose(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, fn)
}

/*
Build constructs every service named by the configuration.

The broker and the backend share one Redis client when they point at the same
URL. On error everything opened so far is closed again.
*/
func Build(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	c := NewContainer(cfg)

	if err := c.build(ctx, cfg, logger); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	redisClients := make(map[string]*redis.Client)
	redisFor := func(url string) (*redis.Client, error) {
		if rdb, ok := redisClients[url]; ok {
			return rdb, nil
		}
		rdb, err := queue.NewRedisClient(ctx, url)
		if err != nil {
			return nil, err
		}
		redisClients[url] = rdb
		c.onClose(rdb.Close)
		return rdb, nil
	}

	healthChecks := make(map[string]health.Pinger)

	broker, err := c.newBroker(cfg, logger, redisFor, healthChecks)
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	c.Register(ServiceBroker, broker)

	backend, err := c.newBackend(ctx, cfg, logger, redisFor)
	if err != nil {
		return fmt.Errorf("result backend: %w", err)
	}
	c.Register(ServiceBackend, backend)
	healthChecks["results"] = backend

	fetcher := feed.NewFetcher(&http.Client{Timeout: cfg.Fetch.Timeout}, cfg.Fetch.UserAgent, cfg.Fetch.MaxBytes, logger)
	registry := tasks.NewDefaultRegistry(fetcher)
	c.Register(ServiceRegistry, registry)

	recordCache := cache.NewInMemoryCache(cfg.Results.CacheTTL)
	cacheManager := cache.NewCacheManager(recordCache, logger, cfg.Results.CacheTTL)
	c.onClose(func() error {
		defer recordCache.Stop()
		return cacheManager.ClearAll()
	})
	c.Register(ServiceCache, cacheManager)

	client := queue.NewClient(broker, backend, cacheManager, logger)
	c.Register(ServiceClient, client)

	renderer, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}
	c.Register(ServiceHandler, handlers.NewHandler(client, registry, renderer, logger, cfg.Web.RefreshInterval))
	c.Register(ServiceHealth, health.NewHandler(healthChecks, logger))

	c.Register(ServiceWorker, queue.NewWorker(broker, backend, registry, cfg.Worker.Concurrency, logger))
	return nil
}

func (c *Container) newBroker(cfg *config.Config, logger *logrus.Logger, redisFor func(string) (*redis.Client, error), checks map[string]health.Pinger) (queue.Broker, error) {
	if cfg.BrokerIsMemory() {
		broker := queue.NewMemoryBroker(queue.MemoryBrokerConfig{
			QueueSize:           cfg.Broker.QueueSize,
			BackpressureEnabled: cfg.Broker.Backpressure,
			RejectThreshold:     cfg.Broker.RejectThreshold,
			WaitTimeout:         cfg.Broker.WaitTimeout,
		}, logger)
		c.onClose(broker.Close)
		return broker, nil
	}

	rdb, err := redisFor(cfg.Broker.URL)
	if err != nil {
		return nil, err
	}
	checks["broker"] = redisPinger{rdb}
	broker := queue.NewRedisBroker(rdb, cfg.Broker.Queue, cfg.Broker.PollTimeout)
	c.onClose(broker.Close)
	return broker, nil
}

func (c *Container) newBackend(ctx context.Context, cfg *config.Config, logger *logrus.Logger, redisFor func(string) (*redis.Client, error)) (queue.ResultBackend, error) {
	scheme, err := config.Scheme(cfg.Results.URL)
	if err != nil {
		return nil, err
	}

	switch scheme {
	case "memory":
		backend := queue.NewMemoryBackend(cfg.Results.Expires, logger)
		c.onClose(func() error {
			backend.Stop()
			return nil
		})
		return backend, nil
	case "redis", "rediss":
		rdb, err := redisFor(cfg.Results.URL)
		if err != nil {
			return nil, err
		}
		return queue.NewRedisBackend(rdb, cfg.Results.Expires), nil
	case "datastore":
		client, err := datastore.NewClient(ctx, cfg.DatastoreProject())
		if err != nil {
			return nil, fmt.Errorf("create datastore client: %w", err)
		}
		c.onClose(client.Close)
		return queue.NewDatastoreBackend(client, cfg.Results.Expires), nil
	default:
		return nil, fmt.Errorf("unsupported scheme %q", scheme)
	}
}

type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// GetClient retrieves the job queue client
func (c *Container) GetClient() (*queue.Client, error) {
	return get[*queue.Client](c, ServiceClient)
}

// GetHandler retrieves the HTTP handler service
func (c *Container) GetHandler() (*handlers.Handler, error) {
	return get[*handlers.Handler](c, ServiceHandler)
}

// GetHealthHandler retrieves the health handler service
func (c *Container) GetHealthHandler() (*health.Handler, error) {
	return get[*health.Handler](c, ServiceHealth)
}

// GetWorker retrieves the worker pool
func (c *Container) GetWorker() (*queue.Worker, error) {
	return get[*queue.Worker](c, ServiceWorker)
}

func get[T any](c *Container, name string) (T, error) {
	var zero T
	service, err := c.Get(name)
	if err != nil {
		return zero, err
	}
	typed, ok := service.(T)
	if !ok {
		return zero, fmt.Errorf("%s service is not of expected type", name)
	}
	return typed, nil
}

// Close gracefully closes all service connections, newest first
func (c *Container) Close() error {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close service: %w", err)
		}
	}
	return firstErr
}
