package container

import (
	"context"
	"testing"
	"time"

	"github.com/Nexora-Open-Source/feed-queue/cache"
	"github.com/Nexora-Open-Source/feed-queue/config"
	"github.com/Nexora-Open-Source/feed-queue/queue"
	"github.com/Nexora-Open-Source/feed-queue/tasks"
	"github.com/Nexora-Open-Source/feed-queue/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(broker, results string) *config.Config {
	return &config.Config{
		Port:        "5000",
		Environment: "development",
		Broker: config.BrokerConfig{
			URL:             broker,
			Queue:           "feeds",
			PollTimeout:     100 * time.Millisecond,
			QueueSize:       10,
			Backpressure:    true,
			RejectThreshold: 0.8,
			WaitTimeout:     time.Second,
		},
		Results: config.ResultConfig{URL: results, Expires: time.Hour, CacheTTL: time.Minute},
		Worker:  config.WorkerConfig{Concurrency: 2},
		Fetch:   config.FetchConfig{Timeout: time.Second, UserAgent: "test", MaxBytes: 1 << 20},
		Web:     config.WebConfig{RefreshInterval: time.Second},
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestBuildInMemory(t *testing.T) {
	c, err := Build(context.Background(), testConfig("memory://", "memory://"), testLogger())
	require.NoError(t, err)
	defer c.Close()

	broker, err := c.Get(ServiceBroker)
	require.NoError(t, err)
	assert.IsType(t, &queue.MemoryBroker{}, broker)

	backend, err := c.Get(ServiceBackend)
	require.NoError(t, err)
	assert.IsType(t, &queue.MemoryBackend{}, backend)

	handler, err := c.GetHandler()
	require.NoError(t, err)
	assert.True(t, handler.Tasks.Has(tasks.GetFeedTask))

	_, err = c.GetWorker()
	assert.NoError(t, err)
	_, err = c.GetHealthHandler()
	assert.NoError(t, err)
}

func TestBuildRedisSharesClient(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr()

	c, err := Build(context.Background(), testConfig(url, url), testLogger())
	require.NoError(t, err)
	defer c.Close()

	broker, err := c.Get(ServiceBroker)
	require.NoError(t, err)
	assert.IsType(t, &queue.RedisBroker{}, broker)

	backend, err := c.Get(ServiceBackend)
	require.NoError(t, err)
	assert.IsType(t, &queue.RedisBackend{}, backend)

	client, err := c.GetClient()
	require.NoError(t, err)
	id, err := client.Submit(context.Background(), tasks.AddTask, tasks.AddArgs{X: 1, Y: 2})
	require.NoError(t, err)
	assert.True(t, mr.Exists("feedqueue:queue:feeds"))
	assert.True(t, mr.Exists("feedqueue:job:"+id))
}

func TestBuildFailsWhenRedisIsUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr()
	mr.Close()

	_, err := Build(context.Background(), testConfig(url, "memory://"), testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker")
}

func TestGetUnknownService(t *testing.T) {
	c := NewContainer(testConfig("memory://", "memory://"))

	_, err := c.Get("nope")
	assert.Error(t, err)

	c.Register(ServiceWorker, "not a worker")
	_, err = c.GetWorker()
	assert.EqualError(t, err, "worker service is not of expected type")
}

func TestCloseRunsNewestFirst(t *testing.T) {
	c := NewContainer(testConfig("memory://", "memory://"))
	var order []int
	c.onClose(func() error { order = append(order, 1); return nil })
	c.onClose(func() error { order = append(order, 2); return nil })

	require.NoError(t, c.Close())
	assert.Equal(t, []int{2, 1}, order)
	require.NoError(t, c.Close())
	assert.Equal(t, []int{2, 1}, order)
}

func TestCloseClearsRecordCache(t *testing.T) {
	c, err := Build(context.Background(), testConfig("memory://", "memory://"), testLogger())
	require.NoError(t, err)

	service, err := c.Get(ServiceCache)
	require.NoError(t, err)
	records := service.(*cache.CacheManager)
	require.NoError(t, records.SetJob(&types.JobRecord{JobID: "job-1", Status: types.StatusReady}))

	require.NoError(t, c.Close())

	_, ok := records.GetJob("job-1")
	assert.False(t, ok)
}
