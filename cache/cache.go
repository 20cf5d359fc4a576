/*
Package cache keeps finished job records in memory.

A job that reached ready or failed never changes again, so the web front end
can answer repeat polls without going back to the result backend. Records
that are still pending are never cached.
*/
package cache

import (
	"sync"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/types"
	"github.com/sirupsen/logrus"
)

// CacheItem represents a cached record with expiration
type CacheItem struct {
	Record    *types.JobRecord
	ExpiresAt time.Time
}

// IsExpired checks if the cache item has expired
func (c *CacheItem) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Cache interface defines caching operations
type Cache interface {
	Get(key string) (*types.JobRecord, bool)
	Set(key string, rec *types.JobRecord, ttl time.Duration) error
	Clear() error
}

// InMemoryCache implements an in-memory cache with TTL support
type InMemoryCache struct {
	items map[string]*CacheItem
	mutex sync.RWMutex
	ttl   time.Duration
	quit  chan struct{}
	once  sync.Once
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache(defaultTTL time.Duration) *InMemoryCache {
	cache := &InMemoryCache{
		items: make(map[string]*CacheItem),
		ttl:   defaultTTL,
		quit:  make(chan struct{}),
	}

	go cache.startCleanup()

	return cache
}

// Get retrieves a record from cache
func (c *InMemoryCache) Get(key string) (*types.JobRecord, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	item, exists := c.items[key]
	if !exists || item.IsExpired() {
		return nil, false
	}

	return item.Record.Clone(), true
}

// Set stores a record in cache
func (c *InMemoryCache) Set(key string, rec *types.JobRecord, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &CacheItem{
		Record:    rec.Clone(),
		ExpiresAt: time.Now().Add(ttl),
	}

	return nil
}

// Clear removes all items from cache
func (c *InMemoryCache) Clear() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[string]*CacheItem)
	return nil
}

// Len returns the number of stored items, expired ones included
func (c *InMemoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// Stop ends the cleanup goroutine
func (c *InMemoryCache) Stop() {
	c.once.Do(func() { close(c.quit) })
}

// startCleanup periodically removes expired items
func (c *InMemoryCache) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.quit:
			return
		}
	}
}

// cleanup removes expired items
func (c *InMemoryCache) cleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for key, item := range c.items {
		if item.IsExpired() {
			delete(c.items, key)
		}
	}
}

// CacheManager stores terminal job records
type CacheManager struct {
	cache  Cache
	logger *logrus.Logger
	ttl    time.Duration
}

// NewCacheManager creates a new cache manager
func NewCacheManager(cache Cache, logger *logrus.Logger, ttl time.Duration) *CacheManager {
	return &CacheManager{
		cache:  cache,
		logger: logger,
		ttl:    ttl,
	}
}

// GetJob retrieves a cached record
func (cm *CacheManager) GetJob(id string) (*types.JobRecord, bool) {
	rec, found := cm.cache.Get(jobKey(id))

	if found {
		cm.logger.WithField("job_id", id).Debug("Cache hit for job record")
	} else {
		cm.logger.WithField("job_id", id).Debug("Cache miss for job record")
	}

	return rec, found
}

// SetJob caches rec if it is terminal; other records are ignored
func (cm *CacheManager) SetJob(rec *types.JobRecord) error {
	if rec == nil || !rec.Status.Terminal() {
		return nil
	}

	if err := cm.cache.Set(jobKey(rec.JobID), rec, cm.ttl); err != nil {
		cm.logger.WithFields(logrus.Fields{
			"job_id": rec.JobID,
			"error":  err.Error(),
		}).Error("Failed to cache job record")
		return err
	}

	cm.logger.WithFields(logrus.Fields{
		"job_id":      rec.JobID,
		"status":      rec.Status,
		"ttl_minutes": cm.ttl.Minutes(),
	}).Debug("Cached job record")

	return nil
}

// ClearAll clears all cached data
func (cm *CacheManager) ClearAll() error {
	err := cm.cache.Clear()

	if err != nil {
		cm.logger.WithError(err).Error("Failed to clear cache")
		return err
	}

	cm.logger.Info("Cache cleared successfully")
	return nil
}

func jobKey(id string) string {
	return "job:" + id
}
