package calc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"nse-metrics/internal/logger"
	"nse-metrics/internal/metrics"
	"nse-metrics/internal/model"
)

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Securities model.SecurityReader
	History    model.HistoryReader
	Writer     model.MetricsWriter

	// Sinks receive every finished result, successful or not.
	Sinks   []model.RunSink
	Metrics *metrics.Metrics
}

// RunRequest selects the date and optional explicit universe of a run.
type RunRequest struct {
	TargetDate time.Time
	Symbols    []string
}

// Orchestrator drives one daily calculation run end to end.
type Orchestrator struct {
	deps    Deps
	opts    Options
	now     func() time.Time
	running atomic.Bool
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	return &Orchestrator{deps: deps, opts: opts.withDefaults(), now: time.Now}
}

// TryRun is Run for concurrent triggers (HTTP, scheduler): it returns
// ErrRunInProgress without running when another TryRun is in flight.
func (o *Orchestrator) TryRun(ctx context.Context, req RunRequest) (*model.RunResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer o.running.Store(false)
	return o.Run(ctx, req), nil
}

// symbolResult is the per-symbol slot filled by a worker.
type symbolResult struct {
	record *model.MetricRecord
	err    error
}

// Run resolves the universe, bulk-loads history, computes breadth, fans the
// per-symbol engine out over a bounded pool, ranks relative strength after
// the join and upserts every record in one transaction. Per-symbol
// failures are collected as "<SYMBOL>: <reason>"; the run succeeds iff at
// least one record was persisted.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) *model.RunResult {
	started := o.now()
	target := model.Day(req.TargetDate)
	res := &model.RunResult{
		TargetDate: model.FormatDate(target),
		Errors:     []string{},
		RunID:      logger.GenerateRunID(target, started),
		StartedAt:  started,
	}
	ctx = logger.WithRunID(ctx, res.RunID)
	log := logger.FromContext(ctx)
	log.Info("[calc] run started", "target_date", res.TargetDate, "explicit_symbols", len(req.Symbols))

	if err := o.run(ctx, req, target, res); err != nil {
		res.Success = false
		res.Errors = append(res.Errors, err.Error())
		log.Error("[calc] run failed", "error", err)
	}
	res.Duration = o.now().Sub(started)

	log.Info("[calc] run finished",
		"success", res.Success,
		"inserted", res.RecordsInserted,
		"updated", res.RecordsUpdated,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
		"duration", res.Duration.String(),
	)
	o.deps.Metrics.ObserveRun(res)
	o.publish(ctx, res)
	return res
}

func (o *Orchestrator) run(ctx context.Context, req RunRequest, target time.Time, res *model.RunResult) error {
	log := logger.FromContext(ctx)

	symbols, err := ResolveUniverse(ctx, o.deps.Securities, req.Symbols)
	if err != nil {
		return err
	}
	res.Symbols = len(symbols)

	from := target.AddDate(0, 0, -o.opts.loadSpanDays())
	history, err := o.deps.History.LoadHistory(ctx, symbols, from, target)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(history) == 0 {
		return fmt.Errorf("%w for %s", ErrHistoryUnavailable, res.TargetDate)
	}
	log.Info("[calc] history loaded", "symbols", len(symbols), "with_data", len(history), "from", model.FormatDate(from))

	bench := o.loadBenchmark(ctx, from, target)

	// Pass 1 completes before any per-symbol record exists.
	breadth := ComputeBreadth(history, target)
	res.Breadth = &breadth

	results, err := o.computeAll(ctx, symbols, history, target, bench)
	if err != nil {
		return err
	}

	records := make([]*model.MetricRecord, 0, len(results))
	for k, r := range results {
		if r.err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", symbols[k], r.err))
			res.Skipped++
			continue
		}
		r.record.ApplyBreadth(breadth)
		records = append(records, r.record)
	}
	res.Computed = len(records)

	// Pass 2 runs after the join.
	RankRelativeStrength(records)

	if len(records) == 0 {
		return fmt.Errorf("%w for %s", ErrNoRecords, res.TargetDate)
	}

	persistStart := time.Now()
	inserted, updated, err := o.deps.Writer.UpsertMetrics(ctx, records, target)
	o.deps.Metrics.ObservePersist(time.Since(persistStart).Seconds())
	if err != nil {
		if errors.Is(err, ErrPersistence) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	res.RecordsInserted, res.RecordsUpdated = inserted, updated
	res.Success = res.Persisted() > 0
	return nil
}

// computeAll runs the engine for every symbol on at most Workers
// goroutines. Each worker writes only its own slot.
func (o *Orchestrator) computeAll(ctx context.Context, symbols []string, history map[string][]model.Bar, target time.Time, bench *Benchmark) ([]symbolResult, error) {
	engine := NewEngine(o.opts, bench)
	results := make([]symbolResult, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for k, sym := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bars, ok := history[sym]
			if !ok {
				results[k].err = fmt.Errorf("%w %s: no bars loaded", ErrTargetMissing, model.FormatDate(target))
				return nil
			}
			start := time.Now()
			rec, err := engine.Compute(sym, bars, target)
			o.deps.Metrics.ObserveCompute(time.Since(start).Seconds())
			if errors.Is(err, ErrTargetMissing) {
				err = fmt.Errorf("%w %s", ErrTargetMissing, model.FormatDate(target))
			}
			results[k] = symbolResult{record: rec, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}
	return results, nil
}

// loadBenchmark returns nil when no benchmark is configured or loaded; the
// engine then measures the RS line on the symbol's own close.
func (o *Orchestrator) loadBenchmark(ctx context.Context, from, to time.Time) *Benchmark {
	if o.opts.BenchmarkSymbol == "" {
		return nil
	}
	log := logger.FromContext(ctx)
	bars, err := o.deps.History.LoadBenchmark(ctx, o.opts.BenchmarkSymbol, from, to)
	if err != nil {
		log.Warn("[calc] benchmark unavailable, using single-symbol RS line", "index", o.opts.BenchmarkSymbol, "error", err)
		return nil
	}
	b := NewBenchmark(o.opts.BenchmarkSymbol, bars)
	if b == nil {
		log.Warn("[calc] benchmark has no bars, using single-symbol RS line", "index", o.opts.BenchmarkSymbol)
	}
	return b
}

func (o *Orchestrator) publish(ctx context.Context, res *model.RunResult) {
	for _, sink := range o.deps.Sinks {
		if err := sink.PublishRun(ctx, res); err != nil {
			logger.FromContext(ctx).Warn("[calc] run sink failed", "sink", fmt.Sprintf("%T", sink), "error", err)
		}
	}
}
