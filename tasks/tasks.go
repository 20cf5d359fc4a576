package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Nexora-Open-Source/feed-queue/feed"
)

const (
	GetFeedTask = "tasks.getFeed"
	AddTask     = "tasks.add"
	FibTask     = "tasks.fib"
)

// FeedFetcher is the part of feed.Fetcher the runner needs
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (*feed.Result, error)
}

// Runner wraps the feed fetcher as a unit of deferred work
type Runner struct {
	fetcher FeedFetcher
}

// NewRunner creates a runner around fetcher
func NewRunner(fetcher FeedFetcher) *Runner {
	return &Runner{fetcher: fetcher}
}

// Run fetches and parses url. Its return value becomes the job result unchanged.
func (r *Runner) Run(ctx context.Context, url string) (*feed.Result, error) {
	return r.fetcher.Fetch(ctx, url)
}

// FeedArgs are the arguments of tasks.getFeed
type FeedArgs struct {
	URL string `json:"url"`
}

// AddArgs are the arguments of tasks.add
type AddArgs struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// FibArgs are the arguments of tasks.fib
type FibArgs struct {
	Max int64 `json:"max"`
}

// NewDefaultRegistry registers every built-in task
func NewDefaultRegistry(fetcher FeedFetcher) *Registry {
	registry := NewRegistry()
	registry.Register(GetFeedTask, GetFeed(NewRunner(fetcher)))
	registry.Register(AddTask, addTask)
	registry.Register(FibTask, fibTask)
	return registry
}

// GetFeed adapts runner to the task signature
func GetFeed(runner *Runner) Func {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args FeedArgs
		if err := decodeArgs(raw, &args); err != nil {
			return nil, err
		}
		return runner.Run(ctx, args.URL)
	}
}

func addTask(_ context.Context, raw json.RawMessage) (any, error) {
	var args AddArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return Add(args.X, args.Y), nil
}

func fibTask(_ context.Context, raw json.RawMessage) (any, error) {
	var args FibArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	return Fib(args.Max), nil
}

// Add returns x+y
func Add(x, y int64) int64 {
	return x + y
}

// Fib returns the Fibonacci numbers that are <= max, starting at 0
func Fib(max int64) []int64 {
	results := []int64{}
	cur, next := int64(0), int64(1)
	for cur <= max {
		results = append(results, cur)
		if next > math.MaxInt64-cur {
			break
		}
		cur, next = next, cur+next
	}
	return results
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing task arguments")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid task arguments: %w", err)
	}
	return nil
}
