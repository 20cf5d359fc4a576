// Package types contains shared types used across the feed queue
package types

import (
	"encoding/json"
	"time"
)

// JobStatus is the lifecycle state of a queued job
type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusStarted JobStatus = "started"
	StatusReady   JobStatus = "ready"
	StatusFailed  JobStatus = "failed"
)

// Terminal reports whether no further transition is possible
func (s JobStatus) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

// JobRecord is the result-store view of one job. The result backend owns it;
// the web front end only reads it.
type JobRecord struct {
	JobID       string          `json:"job_id"`
	Task        string          `json:"task"`
	Args        json.RawMessage `json:"args,omitempty"`
	Status      JobStatus       `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Trace       string          `json:"trace,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	DurationMs  int64           `json:"duration_ms,omitempty"`
}

// Ready reports whether the job finished and its result can be read
func (r *JobRecord) Ready() bool {
	return r.Status == StatusReady
}

// Failed reports whether the job raised instead of returning
func (r *JobRecord) Failed() bool {
	return r.Status == StatusFailed
}

// Clone returns a deep copy so callers can't mutate a stored record
func (r *JobRecord) Clone() *JobRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Args != nil {
		c.Args = append(json.RawMessage(nil), r.Args...)
	}
	if r.Result != nil {
		c.Result = append(json.RawMessage(nil), r.Result...)
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
