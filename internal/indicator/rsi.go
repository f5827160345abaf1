package indicator

import "math"

// RSI calculates the Relative Strength Index using Wilder's smoothing method.
// Update is O(1) per value with no history scans.
type RSI struct {
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string { return "RSI" }

func (r *RSI) Update(price float64) {
	r.count++

	if r.count == 1 {
		// First value, no delta yet
		r.prevClose = price
		return
	}

	gain, loss := split(price - r.prevClose)
	r.prevClose = price

	if r.count <= r.period+1 {
		// Accumulation phase: build initial averages
		r.avgGain += gain
		r.avgLoss += loss

		if r.count == r.period+1 {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
			r.current = rsiFrom(r.avgGain, r.avgLoss)
		}
		return
	}

	// Wilder's smoothing: avg = (prevAvg * (period-1) + x) / period
	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	r.current = rsiFrom(r.avgGain, r.avgLoss)
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.count > r.period }

// RSIAt returns the RSI of closes at index i. Simple smoothing averages the
// trailing period changes; Wilder smoothing recurses from the first bar.
// NaN until period changes exist.
func RSIAt(closes []float64, i, period int, s Smoothing) float64 {
	if i < period || i >= len(closes) {
		return math.NaN()
	}
	if s == Wilder {
		return Last(NewRSI(period), closes[:i+1])
	}
	var gains, losses float64
	for k := i - period + 1; k <= i; k++ {
		g, l := split(closes[k] - closes[k-1])
		gains += g
		losses += l
	}
	p := float64(period)
	return rsiFrom(gains/p, losses/p)
}

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

// rsiFrom is 100 when there were no losses.
func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
