// Package api is the HTTP invocation surface of the metrics engine: the
// calculate-daily trigger, read endpoints over persisted metrics and
// cached runs, screeners, and the run-event websocket.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nse-metrics/internal/calc"
	"nse-metrics/internal/markethours"
	"nse-metrics/internal/model"
	"nse-metrics/internal/screener"
)

// Calculator runs one daily calculation, or returns calc.ErrRunInProgress
// while another is in flight.
type Calculator interface {
	TryRun(ctx context.Context, req calc.RunRequest) (*model.RunResult, error)
}

// RunLookup reads cached run summaries. Both methods return nil, nil when
// nothing is cached.
type RunLookup interface {
	LatestRun(ctx context.Context) (*model.RunResult, error)
	RunFor(ctx context.Context, date string) (*model.RunResult, error)
}

// Config wires the server. Runs, Health and Hub are optional.
type Config struct {
	Calculator Calculator
	Metrics    model.MetricsReader
	Screeners  *screener.Service
	Runs       RunLookup
	Health     http.Handler
	Hub        *Hub
	TargetMode markethours.TargetMode
}

// Server holds the handlers.
type Server struct {
	cfg Config
	now func() time.Time
}

// New creates a Server.
func New(cfg Config) *Server {
	return &Server{cfg: cfg, now: time.Now}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(correlationID)
	r.Use(requestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/metrics/calculate-daily", s.handleCalculateDaily)
		r.Get("/metrics/latest", s.handleLatestMetrics)

		r.Get("/screeners", s.handleListScreeners)
		r.Get("/screeners/{name}", s.handleScreener)

		r.Get("/runs/latest", s.handleLatestRun)
		r.Get("/runs/{date}", s.handleRunFor)
	})

	if s.cfg.Hub != nil {
		r.Handle("/ws/runs", s.cfg.Hub)
	}
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
