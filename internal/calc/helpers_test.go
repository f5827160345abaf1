package calc

import (
	"math"
	"math/rand"
	"time"

	"github.com/guregu/null/v6"

	"nse-metrics/internal/model"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// weekdays returns n consecutive Monday-Friday dates from day0.
func weekdays(n int) []time.Time {
	out := make([]time.Time, 0, n)
	for d := day0; len(out) < n; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

func flatBars(symbol string, n int, price float64) []model.Bar {
	bars := make([]model.Bar, n)
	for k, d := range weekdays(n) {
		bars[k] = model.Bar{
			Symbol: symbol, Date: d,
			Open: price, High: price, Low: price, Close: price,
			Volume: null.IntFrom(1000),
		}
	}
	return bars
}

// risingBars closes 1% higher every day; each bar opens at the previous
// close, so every candle is green with low = open and high = close.
func risingBars(symbol string, n int) []model.Bar {
	bars := make([]model.Bar, n)
	c := 100.0
	for k, d := range weekdays(n) {
		open := c
		c *= 1.01
		bars[k] = model.Bar{
			Symbol: symbol, Date: d,
			Open: open, High: c, Low: open, Close: c,
			Volume: null.IntFrom(int64(1000 + k)),
		}
	}
	return bars
}

// walkBars is a deterministic random walk with consistent OHLC.
func walkBars(symbol string, n int, seed int64) []model.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]model.Bar, n)
	c := 100.0
	for k, d := range weekdays(n) {
		open := c
		c = math.Max(1, c*(1+(rng.Float64()-0.5)*0.06))
		hi := math.Max(open, c) * (1 + rng.Float64()*0.02)
		lo := math.Min(open, c) * (1 - rng.Float64()*0.02)
		bars[k] = model.Bar{
			Symbol: symbol, Date: d,
			Open: open, High: hi, Low: lo, Close: c,
			Volume: null.IntFrom(int64(500 + rng.Intn(2000))),
		}
	}
	return bars
}

func lastDate(bars []model.Bar) time.Time {
	return bars[len(bars)-1].Date
}
