package calc

import (
	"github.com/guregu/null/v6"

	"nse-metrics/internal/indicator"
	"nse-metrics/internal/model"
)

func (s *series) priceChanges(r *model.MetricRecord, i int) {
	c := s.close[i]
	for _, p := range []struct {
		bars int
		dst  *null.Float
	}{
		{1, &r.Change1DPercent},
		{5, &r.Change1WPercent},
		{21, &r.Change1MPercent},
		{63, &r.Change3MPercent},
		{126, &r.Change6MPercent},
	} {
		if prev := i - p.bars; prev >= 0 {
			*p.dst = nf(pct(c-s.close[prev], s.close[prev]))
		}
	}
	if i > 0 {
		r.Change1DValue = null.FloatFrom(c - s.close[i-1])
	}
}

func (s *series) volatility(r *model.MetricRecord, i int, sm indicator.Smoothing) {
	atr := indicator.Average(s.tr, i, atrPeriod, sm)
	r.ATR14 = nf(atr)
	r.ATRPercent = nf(pct(atr, s.close[i]))
	r.ADRPercent = nf(indicator.Mean(indicator.Window(s.rangePct, i, adrPeriod)))
	r.TodayRangePercent = nf(s.rangePct[i])
}

// volumeMetrics compares today's volume with the mean of the preceding 50 bars.
// Bars without volume are left out of the mean.
func (s *series) volumeMetrics(r *model.MetricRecord, i int) {
	if i < volumePeriod {
		return
	}
	var sum float64
	var n int
	for k := i - volumePeriod; k < i; k++ {
		if v := s.volume[k]; !indicator.IsMissing(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return
	}
	avg := sum / float64(n)
	r.Volume50DAvg = null.IntFrom(int64(avg))
	rvol := indicator.Div(s.volume[i], avg)
	r.RVOL = nf(rvol)
	r.IsVolumeSurge = flagOf(rvol, func(v float64) bool { return v >= volumeSurgeRVOL })
}
