package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/monitoring"
	"github.com/Nexora-Open-Source/feed-queue/types"
	"github.com/sirupsen/logrus"
)

// MemoryBrokerConfig tunes backpressure on the in-process broker
type MemoryBrokerConfig struct {
	QueueSize           int
	BackpressureEnabled bool
	RejectThreshold     float64
	WaitTimeout         time.Duration
}

// MemoryBroker is a buffered channel shared by the web process and its embedded workers
type MemoryBroker struct {
	messages chan *Message
	cfg      MemoryBrokerConfig
	logger   *logrus.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewMemoryBroker creates an in-process broker
func NewMemoryBroker(cfg MemoryBrokerConfig, logger *logrus.Logger) *MemoryBroker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 50
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &MemoryBroker{
		messages: make(chan *Message, cfg.QueueSize),
		cfg:      cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Publish enqueues msg, rejecting it when the queue is above the reject threshold
// or stays full for longer than the wait timeout.
func (b *MemoryBroker) Publish(ctx context.Context, msg *Message) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrBrokerClosed
	}

	if b.cfg.BackpressureEnabled {
		load := float64(len(b.messages)) / float64(b.cfg.QueueSize)
		if load >= b.cfg.RejectThreshold {
			b.logger.WithFields(logrus.Fields{
				"job_id":           msg.ID,
				"current_load":     fmt.Sprintf("%.2f", load),
				"reject_threshold": fmt.Sprintf("%.2f", b.cfg.RejectThreshold),
				"queue_size":       len(b.messages),
				"max_queue_size":   b.cfg.QueueSize,
			}).Warn("Rejecting job due to backpressure - queue near capacity")
			return fmt.Errorf("load %.0f%%: %w", load*100, ErrQueueFull)
		}
	}

	timer := time.NewTimer(b.cfg.WaitTimeout)
	defer timer.Stop()

	select {
	case b.messages <- msg:
		monitoring.UpdateQueueDepth(len(b.messages))
		return nil
	case <-timer.C:
		b.logger.WithFields(logrus.Fields{
			"job_id":       msg.ID,
			"wait_timeout": b.cfg.WaitTimeout.String(),
			"queue_size":   len(b.messages),
		}).Warn("Job submission timed out due to queue pressure")
		return fmt.Errorf("timed out after %v: %w", b.cfg.WaitTimeout, ErrQueueFull)
	case <-b.done:
		return ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume waits for the next message
func (b *MemoryBroker) Consume(ctx context.Context) (*Message, error) {
	select {
	case msg := <-b.messages:
		monitoring.UpdateQueueDepth(len(b.messages))
		return msg, nil
	case <-b.done:
		return nil, ErrBrokerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of queued messages
func (b *MemoryBroker) Len() int {
	return len(b.messages)
}

// Close stops delivery. Messages still queued are dropped.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}

type memoryEntry struct {
	record    *types.JobRecord
	expiresAt time.Time
}

// MemoryBackend keeps job records in a map and sweeps expired ones
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]*memoryEntry
	expires time.Duration
	logger  *logrus.Logger
	quit    chan struct{}
	once    sync.Once
}

// NewMemoryBackend creates a backend whose records live for expires (24h when zero)
func NewMemoryBackend(expires time.Duration, logger *logrus.Logger) *MemoryBackend {
	if expires <= 0 {
		expires = 24 * time.Hour
	}
	if logger == nil {
		logger = logrus.New()
	}
	b := &MemoryBackend{
		records: make(map[string]*memoryEntry),
		expires: expires,
		logger:  logger,
		quit:    make(chan struct{}),
	}
	go b.cleanupLoop()
	return b
}

func (b *MemoryBackend) Save(_ context.Context, rec *types.JobRecord) error {
	start := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	var existing *types.JobRecord
	if entry, ok := b.records[rec.JobID]; ok && time.Now().Before(entry.expiresAt) {
		existing = entry.record
	}
	if err := checkTransition(existing); err != nil {
		monitoring.RecordBackendOperation("memory", "save", "rejected", time.Since(start).Seconds())
		return err
	}

	b.records[rec.JobID] = &memoryEntry{
		record:    rec.Clone(),
		expiresAt: time.Now().Add(b.expires),
	}
	monitoring.RecordBackendOperation("memory", "save", "success", time.Since(start).Seconds())
	return nil
}

func (b *MemoryBackend) Load(_ context.Context, id string) (*types.JobRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.records[id]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrJobNotFound
	}
	return entry.record.Clone(), nil
}

func (b *MemoryBackend) Ping(context.Context) error {
	return nil
}

// Stop ends the cleanup goroutine
func (b *MemoryBackend) Stop() {
	b.once.Do(func() { close(b.quit) })
}

func (b *MemoryBackend) cleanupLoop() {
	interval := b.expires / 24
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.cleanup()
		case <-b.quit:
			return
		}
	}
}

func (b *MemoryBackend) cleanup() int {
	b.mu.Lock()
	now := time.Now()
	removed := 0
	for id, entry := range b.records {
		if now.After(entry.expiresAt) {
			delete(b.records, id)
			removed++
		}
	}
	b.mu.Unlock()

	if removed > 0 {
		b.logger.WithField("removed_count", removed).Info("Cleaned up expired job records")
	}
	return removed
}
