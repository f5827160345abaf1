package indicator

import (
	"fmt"
	"math"
)

// Smoothing selects how ATR, RSI and directional averages are formed.
type Smoothing string

const (
	// Simple averages the trailing window.
	Simple Smoothing = "simple"
	// Wilder applies Wilder's recursion seeded by the first window mean,
	// and additionally smooths DX into ADX.
	Wilder Smoothing = "wilder"
)

// ParseSmoothing accepts "simple" or "wilder"; empty means simple.
func ParseSmoothing(s string) (Smoothing, error) {
	switch Smoothing(s) {
	case "", Simple:
		return Simple, nil
	case Wilder:
		return Wilder, nil
	}
	return "", fmt.Errorf("unknown smoothing %q", s)
}

// Window returns the n values of xs ending at index i, or nil if fewer
// than n values exist.
func Window(xs []float64, i, n int) []float64 {
	if n <= 0 || i < n-1 || i >= len(xs) {
		return nil
	}
	return xs[i-n+1 : i+1]
}

// Mean returns the arithmetic mean, NaN for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

// Max returns the largest value, NaN for an empty slice.
func Max(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Min returns the smallest value, NaN for an empty slice.
func Min(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	m := xs[0]
	for _, v := range xs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// StdDev returns the population standard deviation.
func StdDev(xs []float64) float64 {
	mean := Mean(xs)
	if math.IsNaN(mean) {
		return mean
	}
	var ss float64
	for _, v := range xs {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}

// TrueRanges returns the true range of every bar. The first bar has no
// previous close and uses its own open instead.
func TrueRanges(open, high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for k := range close {
		prev := open[k]
		if k > 0 {
			prev = close[k-1]
		}
		out[k] = TrueRange(high[k], low[k], prev)
	}
	return out
}

// Average returns the period average of xs at index i.
func Average(xs []float64, i, period int, s Smoothing) float64 {
	w := Window(xs, i, period)
	if w == nil {
		return math.NaN()
	}
	if s == Wilder {
		return Last(NewSMMA(period), xs[:i+1])
	}
	return Mean(w)
}

// SMAAt returns the simple moving average of xs at index i.
func SMAAt(xs []float64, i, period int) float64 {
	if i >= len(xs) {
		return math.NaN()
	}
	return Last(NewSMA(period), xs[:i+1])
}

// EMAAt returns the SMA-seeded exponential average of xs[0..i].
func EMAAt(xs []float64, i, period int) float64 {
	if i >= len(xs) {
		return math.NaN()
	}
	return Last(NewEMA(period), xs[:i+1])
}

// MACDSeries holds the MACD line, signal and histogram for every index.
type MACDSeries struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes line = EMA(fast) - EMA(slow), signal = EMA(signal) of the
// line and histogram = line - signal. The line exists from slow bars on,
// signal and histogram from slow+signal-1 bars on.
func MACD(closes []float64, fast, slow, signal int) MACDSeries {
	n := len(closes)
	fastS := Series(NewEMA(fast), closes)
	slowS := Series(NewEMA(slow), closes)

	out := MACDSeries{
		Line:      make([]float64, n),
		Signal:    make([]float64, n),
		Histogram: make([]float64, n),
	}
	sig := NewEMA(signal)
	for k := 0; k < n; k++ {
		out.Line[k], out.Signal[k], out.Histogram[k] = math.NaN(), math.NaN(), math.NaN()
		if k < slow-1 {
			continue
		}
		line := fastS[k] - slowS[k]
		out.Line[k] = line
		sig.Update(line)
		if sig.Ready() {
			out.Signal[k] = sig.Value()
			out.Histogram[k] = line - sig.Value()
		}
	}
	return out
}

// Bands is one Bollinger band reading.
type Bands struct {
	Upper, Middle, Lower float64
}

// BollingerAt returns SMA(period) ± k population standard deviations at i.
// All three are NaN before period bars.
func BollingerAt(closes []float64, i, period int, k float64) Bands {
	w := Window(closes, i, period)
	if w == nil {
		nan := math.NaN()
		return Bands{nan, nan, nan}
	}
	mid := Mean(w)
	sd := StdDev(w)
	return Bands{Upper: mid + k*sd, Middle: mid, Lower: mid - k*sd}
}

// Directional is one ADX/DI reading.
type Directional struct {
	PlusDI, MinusDI, DX, ADX float64
}

// DirectionalAt computes +DI, -DI, DX and ADX at index i. A DI is 0 when the
// true range is zero and DX is 0 when both DIs are zero. Simple smoothing
// sums the trailing period bars and reports ADX = DX; Wilder smoothing
// recurses from the first bar and averages DX over period readings.
// All fields are NaN before 2*period bars.
func DirectionalAt(high, low, close []float64, i, period int, s Smoothing) Directional {
	if i < 2*period-1 || i >= len(close) {
		nan := math.NaN()
		return Directional{nan, nan, nan, nan}
	}
	if s == Wilder {
		return wilderDirectional(high, low, close, i, period)
	}

	var plus, minus, tr float64
	for k := i - period + 1; k <= i; k++ {
		p, m := directionalMove(high, low, k)
		plus += p
		minus += m
		tr += TrueRange(high[k], low[k], close[k-1])
	}
	d := directionalFrom(plus, minus, tr)
	d.ADX = d.DX
	return d
}

func wilderDirectional(high, low, close []float64, i, period int) Directional {
	plusS, minusS, trS := NewSMMA(period), NewSMMA(period), NewSMMA(period)
	adx := NewSMMA(period)
	var last Directional
	for k := 1; k <= i; k++ {
		p, m := directionalMove(high, low, k)
		plusS.Update(p)
		minusS.Update(m)
		trS.Update(TrueRange(high[k], low[k], close[k-1]))
		if !trS.Ready() {
			continue
		}
		last = directionalFrom(plusS.Value(), minusS.Value(), trS.Value())
		adx.Update(last.DX)
	}
	if !adx.Ready() {
		last.ADX = math.NaN()
	} else {
		last.ADX = adx.Value()
	}
	return last
}

// directionalMove returns +DM and -DM of bar k: only the larger positive
// move counts, the other is zero.
func directionalMove(high, low []float64, k int) (plus, minus float64) {
	up := high[k] - high[k-1]
	down := low[k-1] - low[k]
	if up > down && up > 0 {
		plus = up
	}
	if down > up && down > 0 {
		minus = down
	}
	return plus, minus
}

func directionalFrom(plusDM, minusDM, tr float64) Directional {
	var d Directional
	if tr != 0 {
		d.PlusDI = 100 * plusDM / tr
		d.MinusDI = 100 * minusDM / tr
	}
	if sum := d.PlusDI + d.MinusDI; sum != 0 {
		d.DX = 100 * math.Abs(d.PlusDI-d.MinusDI) / sum
	}
	return d
}
