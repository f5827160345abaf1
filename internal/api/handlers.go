package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"nse-metrics/internal/calc"
	"nse-metrics/internal/logger"
	"nse-metrics/internal/markethours"
	"nse-metrics/internal/model"
	"nse-metrics/internal/screener"
	"nse-metrics/internal/store/redis"
)

const defaultLatestLimit = 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Health != nil {
		s.cfg.Health.ServeHTTP(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type calculateResponse struct {
	Message string `json:"message"`
	*model.RunResult
}

// handleCalculateDaily runs the calculation synchronously. A failed run
// answers 400 with the same body shape; a second trigger while one is in
// flight answers 409.
func (s *Server) handleCalculateDaily(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	target, err := parseDateParam(q.Get("target_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if target.IsZero() {
		target = markethours.DefaultTargetDate(s.now(), s.cfg.TargetMode)
	}

	res, err := s.cfg.Calculator.TryRun(r.Context(), calc.RunRequest{
		TargetDate: target,
		Symbols:    splitSymbols(q["symbols"]),
	})
	if errors.Is(err, calc.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("[api] calculate-daily", "error", err)
		writeError(w, http.StatusInternalServerError, "calculation failed to start")
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusBadRequest, calculateResponse{Message: "Metrics calculation failed", RunResult: res})
		return
	}
	writeJSON(w, http.StatusOK, calculateResponse{Message: "Metrics calculation completed successfully", RunResult: res})
}

func (s *Server) handleLatestMetrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := strings.ToUpper(strings.TrimSpace(q.Get("symbol")))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	limit := defaultLatestLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := s.cfg.Metrics.LatestMetrics(r.Context(), symbol, limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("[api] latest metrics", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load metrics")
		return
	}
	if len(recs) == 0 {
		writeError(w, http.StatusNotFound, "no metrics found for symbol "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":  symbol,
		"count":   len(recs),
		"metrics": recs,
	})
}

func (s *Server) handleListScreeners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"screeners": screener.Names()})
}

func (s *Server) handleScreener(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := parseDateParam(q.Get("target_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	params := screener.Params{}
	for k, v := range q {
		if k != "target_date" && len(v) > 0 {
			params[k] = v[0]
		}
	}

	res, err := s.cfg.Screeners.Run(r.Context(), chi.URLParam(r, "name"), date, params)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, screener.ErrUnknownScreener), errors.Is(err, screener.ErrNoData):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, screener.ErrBadParam):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.FromContext(r.Context()).Error("[api] screener failed", "error", err)
		writeError(w, http.StatusInternalServerError, "screener failed")
	}
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	s.writeRun(w, r, func() (*model.RunResult, error) {
		return s.cfg.Runs.LatestRun(r.Context())
	})
}

func (s *Server) handleRunFor(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := model.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	s.writeRun(w, r, func() (*model.RunResult, error) {
		return s.cfg.Runs.RunFor(r.Context(), date)
	})
}

func (s *Server) writeRun(w http.ResponseWriter, r *http.Request, get func() (*model.RunResult, error)) {
	if s.cfg.Runs == nil {
		writeError(w, http.StatusNotFound, "run cache disabled")
		return
	}
	res, err := get()
	switch {
	case errors.Is(err, redis.ErrCircuitOpen):
		writeError(w, http.StatusServiceUnavailable, "run cache unavailable")
	case err != nil:
		logger.FromContext(r.Context()).Error("[api] run lookup", "error", err)
		writeError(w, http.StatusBadGateway, "run cache error")
	case res == nil:
		writeError(w, http.StatusNotFound, "no cached run")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// parseDateParam returns the zero time for an empty value.
func parseDateParam(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return time.Time{}, errors.New("target_date must be YYYY-MM-DD")
	}
	return d, nil
}

// splitSymbols accepts repeated and comma-separated symbols params.
func splitSymbols(values []string) []string {
	var out []string
	for _, v := range values {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, strings.ToUpper(s))
			}
		}
	}
	return out
}
