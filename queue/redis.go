package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/monitoring"
	"github.com/Nexora-Open-Source/feed-queue/types"
	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix   = "feedqueue:job:"
	queueKeyPrefix = "feedqueue:queue:"
	maxTxRetries   = 5
)

// NewRedisClient opens a client for a redis:// URL and checks it answers
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(options)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// RedisBroker is a list used as a FIFO: LPUSH to publish, BRPOP to consume
type RedisBroker struct {
	rdb         *redis.Client
	key         string
	pollTimeout time.Duration
	closed      atomic.Bool
}

// NewRedisBroker creates a broker on the named queue. The client stays owned by the caller.
func NewRedisBroker(rdb *redis.Client, queue string, pollTimeout time.Duration) *RedisBroker {
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	return &RedisBroker{
		rdb:         rdb,
		key:         queueKeyPrefix + queue,
		pollTimeout: pollTimeout,
	}
}

func (b *RedisBroker) Publish(ctx context.Context, msg *Message) error {
	if b.closed.Load() {
		return ErrBrokerClosed
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := b.rdb.LPush(ctx, b.key, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.ID, err)
	}
	if n, err := b.rdb.LLen(ctx, b.key).Result(); err == nil {
		monitoring.UpdateQueueDepth(int(n))
	}
	return nil
}

// Consume polls with BRPOP so a closed broker or cancelled ctx is noticed
// within one poll timeout.
func (b *RedisBroker) Consume(ctx context.Context) (*Message, error) {
	for {
		if b.closed.Load() {
			return nil, ErrBrokerClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vals, err := b.rdb.BRPop(ctx, b.pollTimeout, b.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("consume: %w", err)
		}
		if len(vals) < 2 {
			return nil, fmt.Errorf("unexpected BRPop response: %v", vals)
		}

		var msg Message
		if err := json.Unmarshal([]byte(vals[1]), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		return &msg, nil
	}
}

func (b *RedisBroker) Close() error {
	b.closed.Store(true)
	return nil
}

// RedisBackend stores each record as JSON under its own key with a TTL
type RedisBackend struct {
	rdb     *redis.Client
	expires time.Duration
}

// NewRedisBackend creates a backend whose keys expire after expires
func NewRedisBackend(rdb *redis.Client, expires time.Duration) *RedisBackend {
	if expires <= 0 {
		expires = 24 * time.Hour
	}
	return &RedisBackend{rdb: rdb, expires: expires}
}

// Save writes rec inside a WATCH transaction so a terminal record is never replaced
func (b *RedisBackend) Save(ctx context.Context, rec *types.JobRecord) error {
	start := time.Now()
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", rec.JobID, err)
	}
	key := jobKeyPrefix + rec.JobID

	txf := func(tx *redis.Tx) error {
		existing, err := loadRecord(ctx, tx, key)
		if err != nil && !errors.Is(err, ErrJobNotFound) {
			return err
		}
		if err := checkTransition(existing); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, b.expires)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err = b.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}

	switch {
	case err == nil:
		monitoring.RecordBackendOperation("redis", "save", "success", time.Since(start).Seconds())
		return nil
	case errors.Is(err, ErrJobFinalized):
		monitoring.RecordBackendOperation("redis", "save", "rejected", time.Since(start).Seconds())
		return err
	default:
		monitoring.RecordBackendOperation("redis", "save", "failed", time.Since(start).Seconds())
		return fmt.Errorf("save job %s: %w", rec.JobID, err)
	}
}

func (b *RedisBackend) Load(ctx context.Context, id string) (*types.JobRecord, error) {
	start := time.Now()
	rec, err := loadRecord(ctx, b.rdb, jobKeyPrefix+id)
	status := "success"
	if err != nil && !errors.Is(err, ErrJobNotFound) {
		status = "failed"
	}
	monitoring.RecordBackendOperation("redis", "load", status, time.Since(start).Seconds())
	return rec, err
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func loadRecord(ctx context.Context, c stringGetter, key string) (*types.JobRecord, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec types.JobRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &rec, nil
}
