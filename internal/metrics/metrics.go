package metrics

import (
	"nse-metrics/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the metrics engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec // labels: status=success|failed
	RunDuration      prometheus.Histogram
	SymbolsTotal     *prometheus.CounterVec // labels: outcome=computed|skipped
	RecordsTotal     *prometheus.CounterVec // labels: op=inserted|updated
	SymbolComputeDur prometheus.Histogram
	PersistDur       prometheus.Histogram
	LastRunTimestamp prometheus.Gauge
	LastRunSuccess   prometheus.Gauge

	// Circuit breaker around the Redis run cache
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter

	// Run-event websocket
	WSClients prometheus.Gauge
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metricsd_runs_total",
			Help: "Daily calculation runs by outcome",
		}, []string{"status"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "metricsd_run_duration_seconds",
			Help:    "Wall time of a full calculation run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		SymbolsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metricsd_symbols_total",
			Help: "Symbols processed by outcome",
		}, []string{"outcome"}),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metricsd_records_total",
			Help: "Metric rows persisted by operation",
		}, []string{"op"}),
		SymbolComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "metricsd_symbol_compute_duration_seconds",
			Help:    "Per-symbol indicator computation latency",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		PersistDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "metricsd_persist_duration_seconds",
			Help:    "Upsert transaction latency",
			Buckets: prometheus.DefBuckets,
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metricsd_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metricsd_last_run_success",
			Help: "1 if the last run succeeded, else 0",
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metricsd_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metricsd_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metricsd_ws_clients",
			Help: "Connected run-event websocket clients",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.SymbolsTotal,
		m.RecordsTotal,
		m.SymbolComputeDur,
		m.PersistDur,
		m.LastRunTimestamp,
		m.LastRunSuccess,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.WSClients,
	)

	return m
}

// ObserveRun records the outcome of a finished run.
func (m *Metrics) ObserveRun(res *model.RunResult) {
	if m == nil || res == nil {
		return
	}
	status := "failed"
	success := 0.0
	if res.Success {
		status = "success"
		success = 1
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(res.Duration.Seconds())
	m.SymbolsTotal.WithLabelValues("computed").Add(float64(res.Computed))
	m.SymbolsTotal.WithLabelValues("skipped").Add(float64(res.Skipped))
	m.RecordsTotal.WithLabelValues("inserted").Add(float64(res.RecordsInserted))
	m.RecordsTotal.WithLabelValues("updated").Add(float64(res.RecordsUpdated))
	m.LastRunTimestamp.Set(float64(res.StartedAt.Add(res.Duration).Unix()))
	m.LastRunSuccess.Set(success)
}

// ObserveCompute records one per-symbol computation.
func (m *Metrics) ObserveCompute(seconds float64) {
	if m == nil {
		return
	}
	m.SymbolComputeDur.Observe(seconds)
}

// ObservePersist records one upsert transaction.
func (m *Metrics) ObservePersist(seconds float64) {
	if m == nil {
		return
	}
	m.PersistDur.Observe(seconds)
}
