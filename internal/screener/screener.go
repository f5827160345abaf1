// Package screener runs named stock screens over the persisted metrics of
// one trading date.
package screener

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"nse-metrics/internal/logger"
	"nse-metrics/internal/model"
)

var (
	ErrUnknownScreener = errors.New("unknown screener")
	ErrNoData          = errors.New("no metrics data available")
	ErrBadParam        = errors.New("invalid parameter")
)

// NameLookup resolves security names for result rows.
type NameLookup interface {
	SecurityNames(ctx context.Context) (map[string]string, error)
}

// Params are the screener-specific thresholds, usually taken from a query
// string. Missing keys use the screener defaults.
type Params map[string]string

func (p Params) float(key string, def float64) (float64, error) {
	s := strings.TrimSpace(p[key])
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %s=%q", ErrBadParam, key, s)
	}
	return v, nil
}

func (p Params) int(key string, def int) (int, error) {
	s := strings.TrimSpace(p[key])
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w %s=%q", ErrBadParam, key, s)
	}
	return v, nil
}

func (p Params) limit(def int) (int, error) {
	n, err := p.int("limit", def)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w limit=%d: must be positive", ErrBadParam, n)
	}
	return n, nil
}

// Row is one result line. Values are null.Float / null.Int so that missing
// metrics render as JSON null.
type Row map[string]any

// Result is the response of one screener.
type Result struct {
	Screener string         `json:"screener"`
	Date     string         `json:"date"`
	Criteria map[string]any `json:"criteria,omitempty"`
	Count    int            `json:"count"`
	Results  []Row          `json:"results,omitempty"`

	// Aggregate screens
	TotalStocks *int           `json:"total_stocks,omitempty"`
	Breakdown   []StageBucket  `json:"breakdown,omitempty"`
	Breadth     *BreadthReport `json:"breadth,omitempty"`
}

type screenFunc func(recs []*model.MetricRecord, p Params, res *Result) error

type definition struct {
	title string
	run   screenFunc
}

var registry = map[string]definition{
	"breakouts-4percent": {"4% Daily Breakouts", breakouts},
	"rs-leaders":         {"RS Leaders (97 Club)", rsLeaders},
	"high-volume":        {"High Volume Movers", highVolume},
	"ma-stacked":         {"MA Stacked Breakouts", maStacked},
	"weekly-movers":      {"20% Weekly Movers", weeklyMovers},
	"momentum-watchlist": {"Momentum Watchlist", momentumWatchlist},
	"rrg-quadrants":      {"Relative Rotation Quadrants", rrgQuadrants},
	"stage-analysis":     {"Stage Analysis Breakdown", stageAnalysis},
	"breadth-metrics":    {"Breadth Metrics Dashboard", breadthMetrics},
}

// Names returns the registered screener names in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Service runs screeners against a metrics store.
type Service struct {
	metrics model.MetricsReader
	names   NameLookup
}

// New creates a Service. names may be nil.
func New(metrics model.MetricsReader, names NameLookup) *Service {
	return &Service{metrics: metrics, names: names}
}

// Run executes screener name for date. A zero date screens the most recent
// date that has metrics.
func (s *Service) Run(ctx context.Context, name string, date time.Time, p Params) (*Result, error) {
	def, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownScreener, name)
	}

	if date.IsZero() {
		latest, found, err := s.metrics.LatestDate(ctx)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrNoData
		}
		date = latest
	}
	date = model.Day(date)

	recs, err := s.metrics.MetricsForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	res := &Result{Screener: def.title, Date: model.FormatDate(date)}
	if err := def.run(recs, p, res); err != nil {
		return nil, err
	}
	res.Count = len(res.Results)
	if res.Breakdown != nil {
		res.Count = len(res.Breakdown)
	}
	s.attachNames(ctx, res.Results)
	return res, nil
}

func (s *Service) attachNames(ctx context.Context, rows []Row) {
	if s.names == nil || len(rows) == 0 {
		return
	}
	names, err := s.names.SecurityNames(ctx)
	if err != nil {
		logger.FromContext(ctx).Warn("[screener] security names unavailable", "error", err)
		return
	}
	for _, row := range rows {
		if sym, ok := row["symbol"].(string); ok {
			row["name"] = names[sym]
		}
	}
}

func atLeast(v null.Float, min float64) bool { return v.Valid && v.Float64 >= min }
func atMost(v null.Float, max float64) bool  { return v.Valid && v.Float64 <= max }
func isSet(v null.Int) bool                  { return v.Valid && v.Int64 == 1 }

func filter(recs []*model.MetricRecord, keep func(*model.MetricRecord) bool) []*model.MetricRecord {
	var out []*model.MetricRecord
	for _, r := range recs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// sortBy orders recs on key with nulls last. The sort is stable so equal
// keys keep the store's symbol order.
func sortBy(recs []*model.MetricRecord, key func(*model.MetricRecord) null.Float, desc bool) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := key(recs[i]), key(recs[j])
		if !a.Valid || !b.Valid {
			return a.Valid && !b.Valid
		}
		if desc {
			return a.Float64 > b.Float64
		}
		return a.Float64 < b.Float64
	})
}

func head(recs []*model.MetricRecord, n int) []*model.MetricRecord {
	if len(recs) > n {
		return recs[:n]
	}
	return recs
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// ratio returns num/den rounded to 2 places, or null when den is zero.
func ratio(num, den int) null.Float {
	if den <= 0 {
		return null.Float{}
	}
	return null.FloatFrom(round2(float64(num) / float64(den)))
}

func percentOf(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(n) / float64(total) * 100)
}
