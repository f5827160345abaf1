package calc

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/guregu/null/v6"

	"nse-metrics/internal/indicator"
	"nse-metrics/internal/model"
)

// Engine computes the point-in-time metrics of one symbol. It holds no
// mutable state and is safe for concurrent use.
type Engine struct {
	opts  Options
	bench *Benchmark
}

// NewEngine creates an engine. bench may be nil.
func NewEngine(opts Options, bench *Benchmark) *Engine {
	return &Engine{opts: opts.withDefaults(), bench: bench}
}

// Compute returns the metrics of symbol on target. bars must be ascending
// by date. The record is skipped entirely, with ErrTargetMissing or
// ErrInsufficientHistory, when target is absent or fewer than MinHistory
// bars precede it. Universe fields (breadth, RS percentile) are left null.
func (e *Engine) Compute(symbol string, bars []model.Bar, target time.Time) (*model.MetricRecord, error) {
	target = model.Day(target)
	i := sort.Search(len(bars), func(k int) bool { return !model.Day(bars[k].Date).Before(target) })
	if i == len(bars) || !model.Day(bars[i].Date).Equal(target) {
		return nil, ErrTargetMissing
	}
	if i < e.opts.MinHistory {
		return nil, fmt.Errorf("%w: %d prior bars, need %d", ErrInsufficientHistory, i, e.opts.MinHistory)
	}

	s := newSeries(bars[:i+1])
	r := &model.MetricRecord{Symbol: symbol, Date: target}

	s.priceChanges(r, i)
	s.volatility(r, i, e.opts.Smoothing)
	s.volumeMetrics(r, i)
	s.movingAverages(r, i)
	s.extension(r, i)
	s.darvas(r, i)
	s.rangeExtremes(r, i)
	r.ORHProxy = null.FloatFrom(s.high[i])
	r.IsM30Reclaim = flag(s.close[i] > s.high[i]*m30ReclaimFactor)
	r.VCPScore = null.IntFrom(int64(s.vcpScore(i)))
	classifyStage(r, s.close[i])
	r.IsGreenCandle = flag(s.close[i] >= s.open[i])
	s.rsi(r, i, e.opts.Smoothing)
	s.macd(r, i)
	s.bollinger(r, i)
	s.directional(r, i, e.opts.Smoothing)
	s.rotation(r, i, e.bench)

	return r, nil
}

// series is a column view of one symbol's bars up to the target.
type series struct {
	dates    []time.Time
	open     []float64
	high     []float64
	low      []float64
	close    []float64
	volume   []float64 // NaN where the bar has no volume
	tr       []float64
	rangePct []float64 // (high-low)/close*100
}

func newSeries(bars []model.Bar) *series {
	n := len(bars)
	s := &series{
		dates:    make([]time.Time, n),
		open:     make([]float64, n),
		high:     make([]float64, n),
		low:      make([]float64, n),
		close:    make([]float64, n),
		volume:   make([]float64, n),
		rangePct: make([]float64, n),
	}
	for k, b := range bars {
		s.dates[k] = model.Day(b.Date)
		s.open[k], s.high[k], s.low[k], s.close[k] = b.Open, b.High, b.Low, b.Close
		s.volume[k] = math.NaN()
		if b.Volume.Valid {
			s.volume[k] = float64(b.Volume.Int64)
		}
		s.rangePct[k] = pct(b.High-b.Low, b.Close)
	}
	s.tr = indicator.TrueRanges(s.open, s.high, s.low, s.close)
	return s
}

// nf maps NaN and Inf to null.
func nf(v float64) null.Float {
	if indicator.IsMissing(v) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

func flag(cond bool) null.Int {
	if cond {
		return null.IntFrom(1)
	}
	return null.IntFrom(0)
}

// flagOf is null when v is unavailable.
func flagOf(v float64, pred func(float64) bool) null.Int {
	if indicator.IsMissing(v) {
		return null.Int{}
	}
	return flag(pred(v))
}

// priceEpsilon is the relative tolerance under which two price-scaled
// values compare equal. Running-sum averages of a constant series drift
// by a few ULPs away from the constant.
const priceEpsilon = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) <= priceEpsilon*math.Max(math.Abs(a), math.Abs(b))
}

// above is a > b beyond rounding noise.
func above(a, b float64) bool {
	return a > b && !near(a, b)
}

// pct is a/b*100 under the division guard.
func pct(a, b float64) float64 {
	return indicator.Div(a, b) * 100
}
