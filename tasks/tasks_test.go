package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/Nexora-Open-Source/feed-queue/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFetcher is a mock implementation of FeedFetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (*feed.Result, error) {
	args := m.Called(ctx, url)
	if r := args.Get(0); r != nil {
		return r.(*feed.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestRunnerReturnsFetcherResultUnchanged(t *testing.T) {
	fetcher := new(MockFetcher)
	want := &feed.Result{Bozo: true, Error: &feed.ErrorDescriptor{Message: "unexpected EOF", Line: 4}}
	fetcher.On("Fetch", mock.Anything, "http://example.com/rss").Return(want, nil)

	got, err := NewRunner(fetcher).Run(context.Background(), "http://example.com/rss")

	require.NoError(t, err)
	assert.Same(t, want, got)
	fetcher.AssertExpectations(t)
}

func TestRunnerPropagatesFetchError(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, "http://example.com/down").Return(nil, errors.New("connection refused"))

	_, err := NewRunner(fetcher).Run(context.Background(), "http://example.com/down")

	assert.EqualError(t, err, "connection refused")
}

func TestDefaultRegistry(t *testing.T) {
	registry := NewDefaultRegistry(new(MockFetcher))

	assert.Equal(t, []string{AddTask, FibTask, GetFeedTask}, registry.Names())
	assert.True(t, registry.Has(GetFeedTask))
	assert.False(t, registry.Has("tasks.unknown"))
}

func TestGetFeedTaskDecodesURL(t *testing.T) {
	fetcher := new(MockFetcher)
	want := &feed.Result{Feed: &feed.Document{Title: "Example"}}
	fetcher.On("Fetch", mock.Anything, "http://example.com/rss").Return(want, nil)

	fn, ok := NewDefaultRegistry(fetcher).Lookup(GetFeedTask)
	require.True(t, ok)

	got, err := fn(context.Background(), json.RawMessage(`{"url":"http://example.com/rss"}`))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTaskArgumentErrors(t *testing.T) {
	registry := NewDefaultRegistry(new(MockFetcher))

	tests := []struct {
		name string
		task string
		args string
		want string
	}{
		{"missing args", AddTask, "", "missing task arguments"},
		{"bad json", FibTask, "{", "invalid task arguments"},
		{"wrong type", GetFeedTask, `{"url":42}`, "invalid task arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, ok := registry.Lookup(tt.task)
			require.True(t, ok)

			_, err := fn(context.Background(), json.RawMessage(tt.args))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAddTask(t *testing.T) {
	fn, _ := NewDefaultRegistry(nil).Lookup(AddTask)

	got, err := fn(context.Background(), json.RawMessage(`{"x":2,"y":40}`))

	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
}

func TestFib(t *testing.T) {
	tests := []struct {
		max  int64
		want []int64
	}{
		{-1, []int64{}},
		{0, []int64{0}},
		{1, []int64{0, 1, 1}},
		{10, []int64{0, 1, 1, 2, 3, 5, 8}},
		{13, []int64{0, 1, 1, 2, 3, 5, 8, 13}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Fib(tt.max), "max=%d", tt.max)
	}
}

func TestFibStopsBeforeOverflow(t *testing.T) {
	seq := Fib(math.MaxInt64)

	require.NotEmpty(t, seq)
	for i := 1; i < len(seq); i++ {
		assert.GreaterOrEqual(t, seq[i], seq[i-1])
	}
}
