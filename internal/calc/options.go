package calc

import (
	"runtime"

	"nse-metrics/internal/indicator"
)

// Indicator periods.
const (
	atrPeriod       = 14
	adrPeriod       = 20
	volumePeriod    = 50
	darvasPeriod    = 20
	vcpLookback     = 5
	rsiPeriod       = 14
	macdFast        = 12
	macdSlow        = 26
	macdSignal      = 9
	bollingerPeriod = 20
	bollingerK      = 2.0
	adxPeriod       = 14
	rrgRatioPeriod  = 10
	rrgMomentumLag  = 5
	mcclellanFast   = 19
	mcclellanSlow   = 39
	mcclellanMinDay = 40

	// RequiredHistory is the floor for MinHistory: SMA-200 needs 200 bars
	// before the target, so a row is either complete or not written.
	RequiredHistory = 200
)

// Thresholds for the derived flags.
const (
	volumeSurgeRVOL  = 1.5
	lodTightPercent  = 60.0
	m30ReclaimFactor = 0.99
	stage2BDarvas    = 90.0
	stage2CExtension = 7.0
	rsiOversold      = 30.0
	rsiOverbought    = 70.0
	bbSqueezePercent = 10.0
	strongTrendADX   = 25.0
)

// Options tunes a calculation run.
type Options struct {
	// MinHistory is the number of bars that must precede the target date.
	// Values below RequiredHistory are raised to it.
	MinHistory int
	// LookbackDays is the longest look-back in trading days; the bulk load
	// spans 1.5x this many calendar days. It is never less than MinHistory.
	LookbackDays int
	// Smoothing selects simple or Wilder averages for ATR, RSI and ADX.
	Smoothing indicator.Smoothing
	// BenchmarkSymbol is the index the RS line is measured against.
	// Empty uses the symbol's own close.
	BenchmarkSymbol string
	// Workers bounds per-symbol parallelism.
	Workers int
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		MinHistory:   RequiredHistory,
		LookbackDays: 250,
		Smoothing:    indicator.Simple,
		Workers:      runtime.GOMAXPROCS(0),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinHistory < RequiredHistory {
		o.MinHistory = d.MinHistory
	}
	if o.LookbackDays <= 0 {
		o.LookbackDays = d.LookbackDays
	}
	if o.LookbackDays < o.MinHistory {
		o.LookbackDays = o.MinHistory
	}
	if o.Smoothing == "" {
		o.Smoothing = d.Smoothing
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	return o
}

// loadSpanDays is the calendar-day span of the bulk history load.
func (o Options) loadSpanDays() int {
	return o.LookbackDays * 3 / 2
}
