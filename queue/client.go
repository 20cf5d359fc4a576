package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/monitoring"
	"github.com/Nexora-Open-Source/feed-queue/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RecordCache keeps terminal records close to the front end
type RecordCache interface {
	GetJob(id string) (*types.JobRecord, bool)
	SetJob(rec *types.JobRecord) error
}

// Client submits jobs and reads their records
type Client struct {
	broker  Broker
	backend ResultBackend
	cache   RecordCache
	logger  *logrus.Logger
}

// NewClient creates a client. cache may be nil.
func NewClient(broker Broker, backend ResultBackend, cache RecordCache, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		broker:  broker,
		backend: backend,
		cache:   cache,
		logger:  logger,
	}
}

// Submit stores a pending record for task and publishes it. It returns the new job id.
func (c *Client) Submit(ctx context.Context, task string, args any) (string, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode args for %s: %w", task, err)
	}

	now := time.Now().UTC()
	rec := &types.JobRecord{
		JobID:     uuid.NewString(),
		Task:      task,
		Args:      payload,
		Status:    types.StatusPending,
		CreatedAt: now,
	}
	if err := c.backend.Save(ctx, rec); err != nil {
		return "", fmt.Errorf("store pending job: %w", err)
	}

	msg := &Message{ID: rec.JobID, Task: task, Args: payload, SubmittedAt: now}
	if err := c.broker.Publish(ctx, msg); err != nil {
		c.abandon(rec, err)
		return "", err
	}

	monitoring.RecordJobSubmitted(task)
	c.logger.WithFields(logrus.Fields{
		"job_id": rec.JobID,
		"task":   task,
	}).Info("Job submitted")

	return rec.JobID, nil
}

// abandon marks a job that never reached the broker as failed
func (c *Client) abandon(rec *types.JobRecord, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := time.Now().UTC()
	rec.Status = types.StatusFailed
	rec.Trace = fmt.Sprintf("job %s (%s) was never queued: %v\n", rec.JobID, rec.Task, cause)
	rec.CompletedAt = &done

	if err := c.backend.Save(ctx, rec); err != nil {
		c.logger.WithFields(logrus.Fields{
			"job_id": rec.JobID,
			"error":  err.Error(),
		}).Error("Failed to mark unpublished job as failed")
	}
}

// Lookup returns the current record for id, or ErrJobNotFound
func (c *Client) Lookup(ctx context.Context, id string) (*types.JobRecord, error) {
	if c.cache != nil {
		if rec, ok := c.cache.GetJob(id); ok {
			monitoring.RecordCacheHit()
			return rec, nil
		}
		monitoring.RecordCacheMiss()
	}

	rec, err := c.backend.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && rec.Status.Terminal() {
		if err := c.cache.SetJob(rec); err != nil {
			c.logger.WithFields(logrus.Fields{
				"job_id": id,
				"error":  err.Error(),
			}).Warn("Failed to cache job record")
		}
	}
	return rec, nil
}

// Status returns the job's lifecycle state
func (c *Client) Status(ctx context.Context, id string) (types.JobStatus, error) {
	rec, err := c.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	return rec.Status, nil
}

// Result decodes the result of a ready job into v
func (c *Client) Result(ctx context.Context, id string, v any) error {
	rec, err := c.Lookup(ctx, id)
	if err != nil {
		return err
	}
	if !rec.Ready() {
		return fmt.Errorf("job %s is %s: %w", id, rec.Status, ErrJobNotReady)
	}
	return json.Unmarshal(rec.Result, v)
}

// Trace returns the failure text of a failed job
func (c *Client) Trace(ctx context.Context, id string) (string, error) {
	rec, err := c.Lookup(ctx, id)
	if err != nil {
		return "", err
	}
	if !rec.Failed() {
		return "", fmt.Errorf("job %s is %s: %w", id, rec.Status, ErrJobNotReady)
	}
	return rec.Trace, nil
}

// Ping checks that the result backend is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.backend.Ping(ctx)
}

// IsNotFound reports whether err means the job id is unknown
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}
