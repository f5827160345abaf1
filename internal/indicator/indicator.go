// Package indicator provides technical indicator calculations over daily
// price series.
//
// Streaming indicators implement the Indicator interface and are fed one
// value at a time. Series helpers evaluate a window ending at a given index
// and return NaN when the window cannot be satisfied, so callers can map
// every unavailable value to null with a single check.
package indicator

import "math"

// Indicator is the interface for streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "EMA").
	Name() string

	// Update feeds the next value of the series.
	Update(v float64)

	// Value returns the current value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// Last feeds every value of xs into ind and returns its final value,
// or NaN if the indicator never became ready.
func Last(ind Indicator, xs []float64) float64 {
	for _, v := range xs {
		ind.Update(v)
	}
	if !ind.Ready() {
		return math.NaN()
	}
	return ind.Value()
}

// Series feeds xs into ind and records the value after every update.
// Entries before the indicator is ready are NaN.
func Series(ind Indicator, xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		ind.Update(v)
		if ind.Ready() {
			out[i] = ind.Value()
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// Div divides a by b. A zero, NaN or infinite denominator yields NaN.
func Div(a, b float64) float64 {
	if b == 0 || IsMissing(b) || IsMissing(a) {
		return math.NaN()
	}
	return a / b
}

// IsMissing reports whether v is NaN or infinite.
func IsMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
