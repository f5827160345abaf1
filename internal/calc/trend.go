package calc

import (
	"math"

	"github.com/guregu/null/v6"

	"nse-metrics/internal/indicator"
	"nse-metrics/internal/model"
)

func (s *series) movingAverages(r *model.MetricRecord, i int) {
	c := s.close[i]
	ema10 := indicator.EMAAt(s.close, i, 10)
	sma20 := indicator.SMAAt(s.close, i, 20)
	sma50 := indicator.SMAAt(s.close, i, 50)
	sma100 := indicator.SMAAt(s.close, i, 100)
	sma200 := indicator.SMAAt(s.close, i, 200)

	r.EMA10, r.SMA20, r.SMA50, r.SMA100, r.SMA200 = nf(ema10), nf(sma20), nf(sma50), nf(sma100), nf(sma200)
	r.DistanceFromEMA10Percent = nf(pct(c-ema10, ema10))
	r.DistanceFromSMA50Percent = nf(pct(c-sma50, sma50))
	r.DistanceFromSMA200Percent = nf(pct(c-sma200, sma200))

	stacked := r.EMA10.Valid && r.SMA20.Valid && r.SMA50.Valid && r.SMA100.Valid && r.SMA200.Valid &&
		above(c, ema10) && above(ema10, sma20) && above(sma20, sma50) && above(sma50, sma100) && above(sma100, sma200)
	r.IsMAStacked = flag(stacked)
}

// extension measures distance from SMA50 in ATR units and the day's low
// against ATR. Both are null when ATR is zero.
func (s *series) extension(r *model.MetricRecord, i int) {
	c, low := s.close[i], s.low[i]
	atr := valueOf(r.ATR14)
	sma50 := valueOf(r.SMA50)

	r.ATRExtensionFromSMA50 = nf(indicator.Div(indicator.Div(c, sma50)-1, indicator.Div(atr, c)))
	lod := pct(low-c, atr)
	r.LoDATRPercent = nf(lod)
	r.IsLoDTight = flagOf(lod, func(v float64) bool { return math.Abs(v) < lodTightPercent })
}

// darvas is the 20-bar box including today. Position defaults to 50 on a
// zero-width box.
func (s *series) darvas(r *model.MetricRecord, i int) {
	hw := indicator.Window(s.high, i, darvasPeriod)
	lw := indicator.Window(s.low, i, darvasPeriod)
	if hw == nil {
		return
	}
	hi, lo := indicator.Max(hw), indicator.Min(lw)
	r.Darvas20DHigh = null.FloatFrom(hi)
	r.Darvas20DLow = null.FloatFrom(lo)
	pos := 50.0
	if width := hi - lo; width > 0 {
		pos = (s.close[i] - lo) / width * 100
	}
	r.DarvasPositionPercent = null.FloatFrom(pos)
}

// rangeExtremes flags today's high/low against the 20 prior bars.
func (s *series) rangeExtremes(r *model.MetricRecord, i int) {
	hw := indicator.Window(s.high, i-1, darvasPeriod)
	lw := indicator.Window(s.low, i-1, darvasPeriod)
	if hw == nil {
		return
	}
	r.IsNew20DHigh = flag(s.high[i] >= indicator.Max(hw))
	r.IsNew20DLow = flag(s.low[i] <= indicator.Min(lw))
}

// vcpScore counts consecutive bars, walking back from today, whose range
// is strictly narrower than the bar before, up to 5.
func (s *series) vcpScore(i int) int {
	score := 0
	for k := i; k > 0 && score < vcpLookback; k-- {
		if s.high[k]-s.low[k] >= s.high[k-1]-s.low[k-1] {
			break
		}
		score++
	}
	return score
}

// classifyStage assigns the Weinstein stage from close vs SMA50/SMA200.
func classifyStage(r *model.MetricRecord, c float64) {
	stage, detail := int64(1), "1"
	if r.SMA50.Valid && r.SMA200.Valid {
		sma50, sma200 := r.SMA50.Float64, r.SMA200.Float64
		switch {
		case near(c, sma50) && near(c, sma200):
			// price sitting on both averages is still basing
		case above(c, sma50) && above(c, sma200):
			stage = 2
			switch {
			case r.DarvasPositionPercent.Valid && r.DarvasPositionPercent.Float64 >= stage2BDarvas:
				detail = "2B"
			case r.ATRExtensionFromSMA50.Valid && r.ATRExtensionFromSMA50.Float64 >= stage2CExtension:
				detail = "2C"
			default:
				detail = "2A"
			}
		case above(sma50, c) && above(sma200, c):
			stage, detail = 4, "4"
		default:
			stage, detail = 3, "3"
		}
	}
	r.Stage = null.IntFrom(stage)
	r.StageDetail = null.StringFrom(detail)
}

// valueOf returns NaN for a null float.
func valueOf(f null.Float) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}
