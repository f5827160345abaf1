package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"nse-metrics/internal/metrics"
	"nse-metrics/internal/model"
)

// Keys and channels.
const (
	KeyLatestRun     = "metrics:run:latest"
	KeyRunPrefix     = "metrics:run:"     // + YYYY-MM-DD
	KeyBreadthPrefix = "metrics:breadth:" // + YYYY-MM-DD
	ChannelRuns      = "pub:metrics:runs"

	defaultTTL        = 7 * 24 * time.Hour
	defaultMaxPending = 32
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Dial creates a client and pings the server.
func Dial(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	slog.Info("[redis] connected", "addr", cfg.Addr)
	return client, nil
}

// RunCache caches run summaries and breadth per date and publishes every
// run on ChannelRuns. Writes go through a circuit breaker; results that
// cannot be written are kept (newest maxPending) and replayed once the
// breaker closes again.
type RunCache struct {
	client *goredis.Client
	cb     *CircuitBreaker
	ttl    time.Duration

	mu         sync.Mutex
	pending    []*model.RunResult
	maxPending int

	// OnFlush is called after pending results were replayed.
	OnFlush func(count int)
}

// NewRunCache wraps client. m may be nil.
func NewRunCache(client *goredis.Client, cb *CircuitBreaker, m *metrics.Metrics) *RunCache {
	rc := &RunCache{
		client:     client,
		cb:         cb,
		ttl:        defaultTTL,
		maxPending: defaultMaxPending,
	}

	prev := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		slog.Warn("[redis] circuit breaker transition", "from", from.String(), "to", to.String())
		if m != nil {
			m.RedisCircuitBreakerState.Set(float64(to))
			if to == StateOpen {
				m.RedisCircuitBreakerTrips.Inc()
			}
		}
		if to == StateClosed {
			go rc.flush(context.Background())
		}
	}
	return rc
}

// Client returns the underlying Redis client for health checks.
func (rc *RunCache) Client() *goredis.Client { return rc.client }

// PublishRun caches and publishes res. While the breaker is open the
// result is queued and nil is returned.
func (rc *RunCache) PublishRun(ctx context.Context, res *model.RunResult) error {
	err := rc.cb.Execute(ctx, func(ctx context.Context) error {
		return rc.write(ctx, res)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCircuitOpen):
		rc.enqueue(res)
		return nil
	default:
		rc.enqueue(res)
		return fmt.Errorf("redis publish run %s: %w", res.TargetDate, err)
	}
}

func (rc *RunCache) write(ctx context.Context, res *model.RunResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	payload := string(data)

	pipe := rc.client.Pipeline()
	pipe.Set(ctx, KeyLatestRun, payload, rc.ttl)
	pipe.Set(ctx, KeyRunPrefix+res.TargetDate, payload, rc.ttl)
	if res.Breadth != nil {
		b, err := json.Marshal(res.Breadth)
		if err != nil {
			return fmt.Errorf("marshal breadth: %w", err)
		}
		pipe.Set(ctx, KeyBreadthPrefix+res.TargetDate, string(b), rc.ttl)
	}
	pipe.Publish(ctx, ChannelRuns, payload)

	_, err = pipe.Exec(ctx)
	return err
}

func (rc *RunCache) enqueue(res *model.RunResult) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if len(rc.pending) >= rc.maxPending {
		rc.pending = rc.pending[1:]
	}
	rc.pending = append(rc.pending, res)
}

// flush replays pending results oldest first so the newest ends up as
// the latest run.
func (rc *RunCache) flush(ctx context.Context) {
	rc.mu.Lock()
	if len(rc.pending) == 0 {
		rc.mu.Unlock()
		return
	}
	toFlush := rc.pending
	rc.pending = nil
	rc.mu.Unlock()

	flushed := 0
	for k, res := range toFlush {
		if err := rc.cb.Execute(ctx, func(ctx context.Context) error { return rc.write(ctx, res) }); err != nil {
			slog.Warn("[redis] replay stopped", "error", err, "remaining", len(toFlush)-k)
			for _, r := range toFlush[k:] {
				rc.enqueue(r)
			}
			break
		}
		flushed++
	}

	slog.Info("[redis] replayed pending runs", "count", flushed)
	if rc.OnFlush != nil {
		rc.OnFlush(flushed)
	}
}

// PendingCount returns the number of results waiting to be replayed.
func (rc *RunCache) PendingCount() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.pending)
}

// Close closes the Redis client.
func (rc *RunCache) Close() error {
	return rc.client.Close()
}
