package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/Nexora-Open-Source/feed-queue/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDatastoreClient is a mock implementation of DatastoreClient
type MockDatastoreClient struct {
	mock.Mock
}

func (m *MockDatastoreClient) Get(ctx context.Context, key *datastore.Key, dst interface{}) error {
	args := m.Called(ctx, key, dst)
	return args.Error(0)
}

func (m *MockDatastoreClient) Put(ctx context.Context, key *datastore.Key, src interface{}) (*datastore.Key, error) {
	args := m.Called(ctx, key, src)
	return key, args.Error(0)
}

func keyNamed(name string) interface{} {
	return mock.MatchedBy(func(k *datastore.Key) bool {
		return k.Kind == jobKind && k.Name == name
	})
}

func TestDatastoreBackendSavesNewRecord(t *testing.T) {
	client := new(MockDatastoreClient)
	backend := NewDatastoreBackend(client, time.Hour)

	client.On("Get", mock.Anything, keyNamed("job-1"), mock.Anything).Return(datastore.ErrNoSuchEntity)
	client.On("Put", mock.Anything, keyNamed("job-1"), mock.MatchedBy(func(e *jobEntity) bool {
		return e.Status == "pending" && e.Task == "tasks.getFeed" && e.ExpiresAt.After(time.Now())
	})).Return(nil)

	err := backend.Save(context.Background(), &types.JobRecord{
		JobID:  "job-1",
		Task:   "tasks.getFeed",
		Status: types.StatusPending,
	})

	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestDatastoreBackendRefusesTerminalOverwrite(t *testing.T) {
	client := new(MockDatastoreClient)
	backend := NewDatastoreBackend(client, time.Hour)

	client.On("Get", mock.Anything, keyNamed("job-1"), mock.Anything).Run(func(args mock.Arguments) {
		e := args.Get(2).(*jobEntity)
		e.Status = "ready"
		e.ExpiresAt = time.Now().Add(time.Hour)
	}).Return(nil)

	err := backend.Save(context.Background(), &types.JobRecord{JobID: "job-1", Status: types.StatusFailed})

	assert.ErrorIs(t, err, ErrJobFinalized)
	client.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

func TestDatastoreBackendLoad(t *testing.T) {
	client := new(MockDatastoreClient)
	backend := NewDatastoreBackend(client, time.Hour)
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	client.On("Get", mock.Anything, keyNamed("job-1"), mock.Anything).Run(func(args mock.Arguments) {
		e := args.Get(2).(*jobEntity)
		e.Task = "tasks.fib"
		e.Status = "ready"
		e.Result = []byte(`[0,1,1,2]`)
		e.StartedAt = started
		e.ExpiresAt = time.Now().Add(time.Hour)
	}).Return(nil)

	rec, err := backend.Load(context.Background(), "job-1")

	require.NoError(t, err)
	assert.Equal(t, "job-1", rec.JobID)
	assert.Equal(t, types.StatusReady, rec.Status)
	assert.JSONEq(t, `[0,1,1,2]`, string(rec.Result))
	require.NotNil(t, rec.StartedAt)
	assert.True(t, started.Equal(*rec.StartedAt))
	assert.Nil(t, rec.CompletedAt)
}

func TestDatastoreBackendLoadExpiredOrMissing(t *testing.T) {
	client := new(MockDatastoreClient)
	backend := NewDatastoreBackend(client, time.Hour)

	client.On("Get", mock.Anything, keyNamed("gone"), mock.Anything).Return(datastore.ErrNoSuchEntity)
	client.On("Get", mock.Anything, keyNamed("old"), mock.Anything).Run(func(args mock.Arguments) {
		args.Get(2).(*jobEntity).ExpiresAt = time.Now().Add(-time.Minute)
	}).Return(nil)

	_, err := backend.Load(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = backend.Load(context.Background(), "old")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestDatastoreBackendPing(t *testing.T) {
	client := new(MockDatastoreClient)
	backend := NewDatastoreBackend(client, time.Hour)

	client.On("Get", mock.Anything, keyNamed("__ping__"), mock.Anything).Return(datastore.ErrNoSuchEntity).Once()
	require.NoError(t, backend.Ping(context.Background()))

	client.On("Get", mock.Anything, keyNamed("__ping__"), mock.Anything).Return(errors.New("unavailable")).Once()
	assert.EqualError(t, backend.Ping(context.Background()), "unavailable")
}

func TestDatastoreBackendRejectsOversizedRecord(t *testing.T) {
	client := new(MockDatastoreClient)
	backend := NewDatastoreBackend(client, time.Hour)

	err := backend.Save(context.Background(), &types.JobRecord{
		JobID:  "job-1",
		Task:   "tasks.getFeed",
		Status: types.StatusReady,
		Result: make([]byte, maxEntityPayload+1),
	})

	assert.ErrorIs(t, err, ErrTooLarge)
	client.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}
