package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nse-metrics/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	DBOK           bool `json:"db_ok"`
	RedisEnabled   bool `json:"redis_enabled"`
	RedisConnected bool `json:"redis_connected"`

	// Liveness probe results
	DBLatencyMs    float64   `json:"db_latency_ms"`
	RedisLatencyMs float64   `json:"redis_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`

	lastRun *model.RunResult
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(redisEnabled bool) *HealthStatus {
	return &HealthStatus{
		RedisEnabled: redisEnabled,
		StartedAt:    time.Now(),
	}
}

// PublishRun remembers the last run for /healthz.
func (h *HealthStatus) PublishRun(_ context.Context, res *model.RunResult) error {
	h.mu.Lock()
	h.lastRun = res
	h.mu.Unlock()
	return nil
}

// CheckDB pings the database and records latency + health.
func (h *HealthStatus) CheckDB(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.DBOK = err == nil
	h.DBLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker probes dependencies immediately and then every interval.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, db *sql.DB, rdb *goredis.Client, interval time.Duration) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if db != nil {
			h.CheckDB(probeCtx, db)
		}
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
	}
	go func() {
		probe()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

type lastRunView struct {
	RunID      string `json:"run_id"`
	Success    bool   `json:"success"`
	TargetDate string `json:"target_date"`
	Persisted  int    `json:"persisted"`
	Errors     int    `json:"errors"`
	FinishedAt string `json:"finished_at"`
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.DBOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	} else if h.RedisEnabled && !h.RedisConnected {
		overallStatus = "degraded"
	}

	var last *lastRunView
	if h.lastRun != nil {
		last = &lastRunView{
			RunID:      h.lastRun.RunID,
			Success:    h.lastRun.Success,
			TargetDate: h.lastRun.TargetDate,
			Persisted:  h.lastRun.Persisted(),
			Errors:     len(h.lastRun.Errors),
			FinishedAt: h.lastRun.StartedAt.Add(h.lastRun.Duration).Format(time.RFC3339),
		}
	}

	status := struct {
		Status         string       `json:"status"`
		Uptime         string       `json:"uptime"`
		DBOK           bool         `json:"db_ok"`
		DBLatencyMs    float64      `json:"db_latency_ms"`
		RedisEnabled   bool         `json:"redis_enabled"`
		RedisConnected bool         `json:"redis_connected"`
		RedisLatencyMs float64      `json:"redis_latency_ms"`
		LastCheckAt    string       `json:"last_check_at"`
		LastRun        *lastRunView `json:"last_run,omitempty"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		DBOK:           h.DBOK,
		DBLatencyMs:    h.DBLatencyMs,
		RedisEnabled:   h.RedisEnabled,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
		LastRun:        last,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
