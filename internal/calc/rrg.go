package calc

import (
	"math"

	"nse-metrics/internal/indicator"
	"nse-metrics/internal/model"
)

// rotation fills rs_ratio and rs_momentum. With a benchmark the RS line is
// close/benchmark close on matching dates; without one it is the close
// itself. rs_ratio = 100 * rs / mean(rs over 10 bars) and rs_momentum is
// the 5-bar rate of change of rs_ratio in percent.
func (s *series) rotation(r *model.MetricRecord, i int, bench *Benchmark) {
	rs := make([]float64, i+1)
	for k := 0; k <= i; k++ {
		if bench == nil {
			rs[k] = s.close[k]
			continue
		}
		bc, ok := bench.Close(s.dates[k])
		if !ok {
			rs[k] = math.NaN()
			continue
		}
		rs[k] = indicator.Div(s.close[k], bc)
	}

	ratio := rsRatioAt(rs, i)
	r.RSRatio = nf(ratio)
	if i >= rrgMomentumLag {
		prev := rsRatioAt(rs, i-rrgMomentumLag)
		r.RSMomentum = nf(pct(ratio-prev, prev))
	}
}

func rsRatioAt(rs []float64, i int) float64 {
	w := indicator.Window(rs, i, rrgRatioPeriod)
	return pct(rs[i], indicator.Mean(w))
}
