package calc

import (
	"math"

	"nse-metrics/internal/indicator"
	"nse-metrics/internal/model"
)

func (s *series) rsi(r *model.MetricRecord, i int, sm indicator.Smoothing) {
	v := indicator.RSIAt(s.close, i, rsiPeriod, sm)
	r.RSI14 = nf(v)
	r.RSIOversold = flagOf(v, func(x float64) bool { return x < rsiOversold })
	r.RSIOverbought = flagOf(v, func(x float64) bool { return x > rsiOverbought })
}

// macd reports the line from 26 bars and signal, histogram and crosses
// from 35 bars. A cross fires when line-signal changes sign since the
// previous bar; differences within rounding noise of the close count as
// zero.
func (s *series) macd(r *model.MetricRecord, i int) {
	m := indicator.MACD(s.close[:i+1], macdFast, macdSlow, macdSignal)
	r.MACDLine = nf(m.Line[i])
	if i+1 < macdSlow+macdSignal {
		return
	}
	r.MACDSignal = nf(m.Signal[i])
	r.MACDHistogram = nf(m.Histogram[i])

	cur := m.Line[i] - m.Signal[i]
	prev := m.Line[i-1] - m.Signal[i-1]
	if indicator.IsMissing(cur) || indicator.IsMissing(prev) {
		return
	}
	tol := priceEpsilon * math.Abs(s.close[i])
	if math.Abs(cur) <= tol {
		cur = 0
	}
	if math.Abs(prev) <= tol {
		prev = 0
	}
	r.IsMACDBullishCross = flag(prev <= 0 && cur > 0)
	r.IsMACDBearishCross = flag(prev >= 0 && cur < 0)
}

func (s *series) bollinger(r *model.MetricRecord, i int) {
	b := indicator.BollingerAt(s.close, i, bollingerPeriod, bollingerK)
	r.BBUpper, r.BBMiddle, r.BBLower = nf(b.Upper), nf(b.Middle), nf(b.Lower)
	bw := pct(b.Upper-b.Lower, b.Middle)
	r.BBBandwidthPercent = nf(bw)
	r.IsBBSqueeze = flagOf(bw, func(x float64) bool { return x < bbSqueezePercent })
}

func (s *series) directional(r *model.MetricRecord, i int, sm indicator.Smoothing) {
	d := indicator.DirectionalAt(s.high, s.low, s.close, i, adxPeriod, sm)
	r.ADX14, r.DIPlus, r.DIMinus = nf(d.ADX), nf(d.PlusDI), nf(d.MinusDI)
	r.IsStrongTrend = flagOf(d.ADX, func(x float64) bool { return x > strongTrendADX })
}
