package model

import (
	"context"
	"time"
)

// ── Storage Port Interfaces ──
// These interfaces decouple the calculation core from the concrete stores
// (SQLite, PostgreSQL, Redis). Each implementation satisfies one or more.

// SecurityReader reads the security master.
type SecurityReader interface {
	// ActiveSymbols returns every active symbol ordered by symbol.
	ActiveSymbols(ctx context.Context) ([]string, error)
}

// HistoryReader bulk-loads daily bars.
type HistoryReader interface {
	// LoadHistory returns ascending bars per symbol for from <= date <= to.
	// Symbols without rows are absent from the map.
	LoadHistory(ctx context.Context, symbols []string, from, to time.Time) (map[string][]Bar, error)

	// LoadBenchmark returns ascending index bars for one index symbol.
	LoadBenchmark(ctx context.Context, index string, from, to time.Time) ([]Bar, error)
}

// MetricsWriter persists calculated metrics.
type MetricsWriter interface {
	// UpsertMetrics writes every record for date in one transaction and
	// reports how many rows were inserted and how many were updated.
	UpsertMetrics(ctx context.Context, records []*MetricRecord, date time.Time) (inserted, updated int, err error)
}

// MetricsReader reads persisted metrics for screening.
type MetricsReader interface {
	// LatestDate returns the most recent date with metrics, or false.
	LatestDate(ctx context.Context) (time.Time, bool, error)

	// MetricsForDate returns every record of one date ordered by symbol.
	MetricsForDate(ctx context.Context, date time.Time) ([]*MetricRecord, error)

	// LatestMetrics returns up to limit records for symbol, newest first.
	LatestMetrics(ctx context.Context, symbol string, limit int) ([]*MetricRecord, error)
}

// RunSink receives finished run results (cache, alerts, websocket fan-out).
type RunSink interface {
	PublishRun(ctx context.Context, res *RunResult) error
}
