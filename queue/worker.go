package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/monitoring"
	"github.com/Nexora-Open-Source/feed-queue/tasks"
	"github.com/Nexora-Open-Source/feed-queue/types"
	"github.com/sirupsen/logrus"
)

// TaskLookup resolves a task name to its implementation
type TaskLookup interface {
	Lookup(name string) (tasks.Func, bool)
}

// Worker pulls messages off a broker and executes each one exactly once
type Worker struct {
	broker      Broker
	backend     ResultBackend
	tasks       TaskLookup
	concurrency int
	logger      *logrus.Logger
}

// NewWorker creates a worker pool of concurrency goroutines
func NewWorker(broker Broker, backend ResultBackend, lookup TaskLookup, concurrency int, logger *logrus.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Worker{
		broker:      broker,
		backend:     backend,
		tasks:       lookup,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run blocks until ctx is cancelled or the broker is closed
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.loop(ctx, workerID)
		}(i)
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, workerID int) {
	monitoring.AddActiveWorkers(1)
	defer monitoring.AddActiveWorkers(-1)

	log := w.logger.WithField("worker_id", workerID)
	log.Info("Worker started")
	defer log.Info("Worker stopping")

	for {
		msg, err := w.broker.Consume(ctx)
		if err != nil {
			if errors.Is(err, ErrBrokerClosed) || ctx.Err() != nil {
				return
			}
			log.WithError(err).Error("Failed to consume message")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		w.Process(ctx, msg)
	}
}

// Process executes msg and stores its terminal record
func (w *Worker) Process(ctx context.Context, msg *Message) {
	ctx, span := monitoring.CreateSpan(ctx, "job "+msg.Task)
	defer span.End()
	monitoring.SetSpanAttributes(span, map[string]interface{}{
		"job.id":   msg.ID,
		"job.task": msg.Task,
	})

	log := w.logger.WithFields(logrus.Fields{
		"job_id": msg.ID,
		"task":   msg.Task,
	})

	start := time.Now().UTC()
	rec := &types.JobRecord{
		JobID:     msg.ID,
		Task:      msg.Task,
		Args:      msg.Args,
		Status:    types.StatusStarted,
		CreatedAt: msg.SubmittedAt,
		StartedAt: &start,
	}
	if err := w.backend.Save(ctx, rec); err != nil {
		if errors.Is(err, ErrJobFinalized) {
			log.Warn("Skipping job that already finished")
			return
		}
		log.WithError(err).Warn("Failed to mark job as started")
	}
	log.Info("Processing job")

	result, trace := w.execute(ctx, msg)

	done := time.Now().UTC()
	rec.CompletedAt = &done
	rec.DurationMs = done.Sub(start).Milliseconds()
	if trace == "" {
		payload, err := json.Marshal(result)
		if err != nil {
			trace = formatTrace(msg, fmt.Errorf("encode result: %w", err), nil)
		} else {
			rec.Status = types.StatusReady
			rec.Result = payload
		}
	}
	if trace != "" {
		rec.Status = types.StatusFailed
		rec.Trace = trace
		line, _, _ := strings.Cut(trace, "\n")
		monitoring.SetSpanError(span, errors.New(line))
	}

	err := w.finish(ctx, msg, rec)
	monitoring.RecordJob(msg.Task, string(rec.Status), done.Sub(start).Seconds())
	if err != nil {
		log.WithError(err).Error("Failed to store job result")
		return
	}

	log.WithFields(logrus.Fields{
		"status":      rec.Status,
		"duration_ms": rec.DurationMs,
	}).Info("Job finished")
}

// finish writes the terminal record. A result the backend refuses is replaced
// by a failed record carrying the reason, written with one retry, so the job
// never stays started.
func (w *Worker) finish(ctx context.Context, msg *Message, rec *types.JobRecord) error {
	// the terminal write must not be lost to a cancelled ctx during shutdown
	ctx = context.WithoutCancel(ctx)

	err := w.save(ctx, rec)
	if err == nil || errors.Is(err, ErrJobFinalized) {
		return err
	}

	w.logger.WithFields(logrus.Fields{
		"job_id": msg.ID,
		"status": rec.Status,
		"error":  err.Error(),
	}).Warn("Terminal write refused, storing failure instead")

	if rec.Status == types.StatusReady {
		rec.Status = types.StatusFailed
		rec.Result = nil
		rec.Trace = formatTrace(msg, fmt.Errorf("could not store result: %w", err), nil)
	}

	for attempt := 0; attempt < 2; attempt++ {
		err = w.save(ctx, rec)
		if err == nil || errors.Is(err, ErrJobFinalized) {
			return err
		}
	}
	return err
}

func (w *Worker) save(ctx context.Context, rec *types.JobRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return w.backend.Save(ctx, rec)
}

// execute runs the task. A non-empty trace means the job failed.
func (w *Worker) execute(ctx context.Context, msg *Message) (result any, trace string) {
	fn, ok := w.tasks.Lookup(msg.Task)
	if !ok {
		return nil, formatTrace(msg, fmt.Errorf("unknown task %q", msg.Task), nil)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			trace = formatTrace(msg, fmt.Errorf("panic: %v", r), debug.Stack())
		}
	}()

	result, err := fn(ctx, msg.Args)
	if err != nil {
		return nil, formatTrace(msg, err, nil)
	}
	return result, ""
}

func formatTrace(msg *Message, err error, stack []byte) string {
	trace := fmt.Sprintf("job %s (%s) failed: %v\n", msg.ID, msg.Task, err)
	if len(stack) > 0 {
		trace += "\n" + string(stack)
	}
	return trace
}
