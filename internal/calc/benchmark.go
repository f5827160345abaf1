package calc

import (
	"time"

	"nse-metrics/internal/model"
)

// Benchmark is an index close series looked up by date.
type Benchmark struct {
	Symbol string
	closes map[string]float64
}

// NewBenchmark indexes index bars by date. Returns nil for an empty series,
// which makes the engine fall back to the symbol's own close.
func NewBenchmark(symbol string, bars []model.Bar) *Benchmark {
	if len(bars) == 0 {
		return nil
	}
	b := &Benchmark{Symbol: symbol, closes: make(map[string]float64, len(bars))}
	for _, bar := range bars {
		b.closes[model.FormatDate(bar.Date)] = bar.Close
	}
	return b
}

// Close returns the benchmark close on day.
func (b *Benchmark) Close(day time.Time) (float64, bool) {
	if b == nil {
		return 0, false
	}
	c, ok := b.closes[model.FormatDate(day)]
	return c, ok
}

// Len returns the number of indexed dates.
func (b *Benchmark) Len() int {
	if b == nil {
		return 0
	}
	return len(b.closes)
}
