package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/Nexora-Open-Source/feed-queue/monitoring"
	"github.com/Nexora-Open-Source/feed-queue/types"
)

const jobKind = "Job"

// maxEntityPayload keeps an entity under Datastore's 1 MiB limit, leaving room for the other properties
const maxEntityPayload = 1000 * 1000

// DatastoreClient is the subset of *datastore.Client the backend uses
type DatastoreClient interface {
	Get(ctx context.Context, key *datastore.Key, dst interface{}) error
	Put(ctx context.Context, key *datastore.Key, src interface{}) (*datastore.Key, error)
}

type jobEntity struct {
	Task        string    `datastore:"task"`
	Status      string    `datastore:"status"`
	Args        []byte    `datastore:"args,noindex"`
	Result      []byte    `datastore:"result,noindex"`
	Trace       string    `datastore:"trace,noindex"`
	CreatedAt   time.Time `datastore:"created_at"`
	StartedAt   time.Time `datastore:"started_at,omitempty"`
	CompletedAt time.Time `datastore:"completed_at,omitempty"`
	DurationMs  int64     `datastore:"duration_ms,noindex"`
	ExpiresAt   time.Time `datastore:"expires_at"`
}

// DatastoreBackend keeps job records as "Job" entities keyed by job id.
// Records past expires_at read as missing.
type DatastoreBackend struct {
	client  DatastoreClient
	expires time.Duration
}

// NewDatastoreBackend wraps client
func NewDatastoreBackend(client DatastoreClient, expires time.Duration) *DatastoreBackend {
	if expires <= 0 {
		expires = 24 * time.Hour
	}
	return &DatastoreBackend{client: client, expires: expires}
}

func (b *DatastoreBackend) Save(ctx context.Context, rec *types.JobRecord) error {
	start := time.Now()
	key := datastore.NameKey(jobKind, rec.JobID, nil)

	if size := len(rec.Args) + len(rec.Result) + len(rec.Trace); size > maxEntityPayload {
		monitoring.RecordBackendOperation("datastore", "save", "rejected", time.Since(start).Seconds())
		return fmt.Errorf("job %s carries %d bytes, limit %d: %w", rec.JobID, size, maxEntityPayload, ErrTooLarge)
	}

	existing, err := b.get(ctx, key)
	if err != nil && !errors.Is(err, ErrJobNotFound) {
		monitoring.RecordBackendOperation("datastore", "save", "failed", time.Since(start).Seconds())
		return err
	}
	if err := checkTransition(existing); err != nil {
		monitoring.RecordBackendOperation("datastore", "save", "rejected", time.Since(start).Seconds())
		return err
	}

	entity := toEntity(rec, time.Now().Add(b.expires))
	if _, err := b.client.Put(ctx, key, entity); err != nil {
		monitoring.RecordBackendOperation("datastore", "save", "failed", time.Since(start).Seconds())
		return fmt.Errorf("put job %s: %w", rec.JobID, err)
	}
	monitoring.RecordBackendOperation("datastore", "save", "success", time.Since(start).Seconds())
	return nil
}

func (b *DatastoreBackend) Load(ctx context.Context, id string) (*types.JobRecord, error) {
	start := time.Now()
	rec, err := b.get(ctx, datastore.NameKey(jobKind, id, nil))
	status := "success"
	if err != nil && !errors.Is(err, ErrJobNotFound) {
		status = "failed"
	}
	monitoring.RecordBackendOperation("datastore", "load", status, time.Since(start).Seconds())
	return rec, err
}

// Ping reads a key that never exists; any answer but a transport error is healthy
func (b *DatastoreBackend) Ping(ctx context.Context) error {
	var e jobEntity
	err := b.client.Get(ctx, datastore.NameKey(jobKind, "__ping__", nil), &e)
	if err == nil || errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil
	}
	return err
}

func (b *DatastoreBackend) get(ctx context.Context, key *datastore.Key) (*types.JobRecord, error) {
	var e jobEntity
	err := b.client.Get(ctx, key, &e)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", key.Name, err)
	}
	if !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt) {
		return nil, ErrJobNotFound
	}
	return fromEntity(key.Name, &e), nil
}

func toEntity(rec *types.JobRecord, expiresAt time.Time) *jobEntity {
	e := &jobEntity{
		Task:       rec.Task,
		Status:     string(rec.Status),
		Args:       rec.Args,
		Result:     rec.Result,
		Trace:      rec.Trace,
		CreatedAt:  rec.CreatedAt,
		DurationMs: rec.DurationMs,
		ExpiresAt:  expiresAt,
	}
	if rec.StartedAt != nil {
		e.StartedAt = *rec.StartedAt
	}
	if rec.CompletedAt != nil {
		e.CompletedAt = *rec.CompletedAt
	}
	return e
}

func fromEntity(id string, e *jobEntity) *types.JobRecord {
	rec := &types.JobRecord{
		JobID:      id,
		Task:       e.Task,
		Args:       e.Args,
		Status:     types.JobStatus(e.Status),
		Result:     e.Result,
		Trace:      e.Trace,
		CreatedAt:  e.CreatedAt,
		DurationMs: e.DurationMs,
	}
	if !e.StartedAt.IsZero() {
		t := e.StartedAt
		rec.StartedAt = &t
	}
	if !e.CompletedAt.IsZero() {
		t := e.CompletedAt
		rec.CompletedAt = &t
	}
	return rec
}
