package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-metrics/internal/metrics"
	"nse-metrics/internal/model"
)

func sampleRun(date string) *model.RunResult {
	return &model.RunResult{
		Success:         true,
		TargetDate:      date,
		RecordsInserted: 3,
		Errors:          []string{},
		RunID:           "run-" + date,
		Breadth:         &model.Breadth{UpCount: 2, DownCount: 1, McClellanOscillator: 1.5},
	}
}

// unreachableClient fails fast on every command.
func unreachableClient() *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRunCacheQueuesWhileUnavailable(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	cb := NewCircuitBreaker(2, time.Hour)
	rc := NewRunCache(unreachableClient(), cb, m)
	defer rc.Close()
	rc.maxPending = 3
	ctx := context.Background()

	// failures surface while the breaker is still closed
	require.Error(t, rc.PublishRun(ctx, sampleRun("2025-01-01")))
	require.Error(t, rc.PublishRun(ctx, sampleRun("2025-01-02")))
	assert.Equal(t, StateOpen, cb.CurrentState())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedisCircuitBreakerTrips))
	assert.Equal(t, float64(StateOpen), testutil.ToFloat64(m.RedisCircuitBreakerState))

	// open breaker: queued silently, bounded to the newest results
	require.NoError(t, rc.PublishRun(ctx, sampleRun("2025-01-03")))
	require.NoError(t, rc.PublishRun(ctx, sampleRun("2025-01-06")))
	assert.Equal(t, 3, rc.PendingCount())
	assert.Equal(t, "2025-01-02", rc.pending[0].TargetDate)

	_, err := rc.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

// TestRunCacheRoundTrip runs against a real server when REDIS_TEST_ADDR is set.
func TestRunCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client, err := Dial(ctx, Config{Addr: addr, DB: 15})
	require.NoError(t, err)
	rc := NewRunCache(client, NewCircuitBreaker(3, time.Second), nil)
	defer rc.Close()

	sub := client.Subscribe(ctx, ChannelRuns)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	run := sampleRun("2025-02-03")
	require.NoError(t, rc.PublishRun(ctx, run))

	latest, err := rc.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.RunID, latest.RunID)

	b, err := rc.BreadthFor(ctx, "2025-02-03")
	require.NoError(t, err)
	assert.Equal(t, 2, b.UpCount)

	missing, err := rc.RunFor(ctx, "1990-01-01")
	require.NoError(t, err)
	assert.Nil(t, missing)

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, run.RunID)
	case <-time.After(2 * time.Second):
		t.Fatal("no run event published")
	}
}
