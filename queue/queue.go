/*
Package queue connects the web front end to the workers.

A Broker carries job messages; a ResultBackend stores one JobRecord per job.
Both come in memory, Redis and (for results) Cloud Datastore flavours. Client
is what the front end uses to submit and poll; Worker executes messages.
*/
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/types"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrJobFinalized = errors.New("job already finished")
	ErrJobNotReady  = errors.New("job result not ready")
	ErrQueueFull    = errors.New("queue is full")
	ErrBrokerClosed = errors.New("broker closed")
	ErrTooLarge     = errors.New("job record too large for result backend")
)

// Message is what travels over the broker
type Message struct {
	ID          string          `json:"id"`
	Task        string          `json:"task"`
	Args        json.RawMessage `json:"args,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// Broker delivers each published message to exactly one consumer
type Broker interface {
	Publish(ctx context.Context, msg *Message) error
	// Consume blocks until a message arrives, ctx is done or the broker is closed.
	Consume(ctx context.Context) (*Message, error)
	Close() error
}

// ResultBackend stores job records. Save must refuse to overwrite a
// terminal record with ErrJobFinalized.
type ResultBackend interface {
	Save(ctx context.Context, rec *types.JobRecord) error
	Load(ctx context.Context, id string) (*types.JobRecord, error)
	Ping(ctx context.Context) error
}

// checkTransition is shared by the backends
func checkTransition(existing *types.JobRecord) error {
	if existing != nil && existing.Status.Terminal() {
		return ErrJobFinalized
	}
	return nil
}
