package calc

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-metrics/internal/indicator"
	"nse-metrics/internal/model"
)

func newTestEngine() *Engine {
	return NewEngine(Options{Workers: 1}, nil)
}

func assertFloat(t *testing.T, want float64, got null.Float, field string) {
	t.Helper()
	if assert.Truef(t, got.Valid, "%s is null", field) {
		assert.InDeltaf(t, want, got.Float64, 1e-9, "%s", field)
	}
}

func assertFlag(t *testing.T, want int64, got null.Int, field string) {
	t.Helper()
	if assert.Truef(t, got.Valid, "%s is null", field) {
		assert.Equalf(t, want, got.Int64, "%s", field)
	}
}

func TestComputeHistoryGate(t *testing.T) {
	e := newTestEngine()

	short := flatBars("SHORT", 200, 100)
	_, err := e.Compute("SHORT", short, lastDate(short))
	require.ErrorIs(t, err, ErrInsufficientHistory)
	assert.Contains(t, err.Error(), "199 prior bars")

	enough := flatBars("OK", 201, 100)
	rec, err := e.Compute("OK", enough, lastDate(enough))
	require.NoError(t, err)
	assert.Equal(t, "OK", rec.Symbol)
	assert.True(t, rec.Date.Equal(lastDate(enough)))
}

func TestComputeTargetMissing(t *testing.T) {
	e := newTestEngine()
	bars := flatBars("X", 250, 100)

	sat := lastDate(bars).AddDate(0, 0, 1)
	for sat.Weekday() != time.Saturday {
		sat = sat.AddDate(0, 0, 1)
	}
	_, err := e.Compute("X", bars, sat)
	require.ErrorIs(t, err, ErrTargetMissing)

	_, err = e.Compute("X", bars, day0.AddDate(0, 0, -10))
	require.ErrorIs(t, err, ErrTargetMissing)
}

func TestComputeMinHistoryFloor(t *testing.T) {
	e := NewEngine(Options{MinHistory: 50, LookbackDays: 60}, nil)
	bars := flatBars("LOW", 120, 100)
	_, err := e.Compute("LOW", bars, lastDate(bars))
	require.ErrorIs(t, err, ErrInsufficientHistory)
	assert.Contains(t, err.Error(), "need 200")
	assert.Equal(t, RequiredHistory, e.opts.LookbackDays)
}

// Suspended and circuit-locked names print the same price for months;
// running-sum averages of those prices are off by a few ULPs.
func TestComputeFlatSeries(t *testing.T) {
	for _, price := range []float64{100, 123.45, 0.1, 2917.35} {
		for _, sm := range []indicator.Smoothing{indicator.Simple, indicator.Wilder} {
			t.Run(fmt.Sprintf("%v/%s", price, sm), func(t *testing.T) {
				flatSeriesCase(t, price, sm)
			})
		}
	}
}

func flatSeriesCase(t *testing.T, price float64, sm indicator.Smoothing) {
	e := NewEngine(Options{Smoothing: sm}, nil)
	bars := flatBars("FLAT", 250, price)
	r, err := e.Compute("FLAT", bars, lastDate(bars))
	require.NoError(t, err)

	assertFloat(t, 0, r.Change1DPercent, "change_1d_percent")
	assertFloat(t, 0, r.Change1DValue, "change_1d_value")
	assertFloat(t, 0, r.Change6MPercent, "change_6m_percent")
	assertFloat(t, 0, r.ATR14, "atr_14")
	assertFloat(t, 0, r.ATRPercent, "atr_percent")
	assertFloat(t, 0, r.ADRPercent, "adr_percent")
	assertFloat(t, 0, r.TodayRangePercent, "today_range_percent")

	assertFloat(t, 1, r.RVOL, "rvol")
	assert.Equal(t, null.IntFrom(1000), r.Volume50DAvg)
	assertFlag(t, 0, r.IsVolumeSurge, "is_volume_surge")

	assertFloat(t, price, r.SMA200, "sma_200")
	assertFloat(t, 0, r.DistanceFromSMA50Percent, "distance_from_sma50_percent")
	assertFlag(t, 0, r.IsMAStacked, "is_ma_stacked")

	assert.False(t, r.ATRExtensionFromSMA50.Valid, "atr extension must be null on zero ATR")
	assert.False(t, r.LoDATRPercent.Valid, "lod atr percent must be null on zero ATR")
	assert.False(t, r.IsLoDTight.Valid)

	assertFloat(t, 50, r.DarvasPositionPercent, "darvas_position_percent")
	assertFlag(t, 1, r.IsNew20DHigh, "is_new_20d_high")
	assertFlag(t, 1, r.IsNew20DLow, "is_new_20d_low")
	assertFlag(t, 1, r.IsM30Reclaim, "is_m30_reclaim")
	assertFlag(t, 0, r.VCPScore, "vcp_score")
	assertFlag(t, 1, r.Stage, "stage")
	assert.Equal(t, null.StringFrom("1"), r.StageDetail)
	assertFlag(t, 1, r.IsGreenCandle, "is_green_candle")

	assertFloat(t, 100, r.RSI14, "rsi_14")
	assertFlag(t, 1, r.RSIOverbought, "rsi_overbought")
	assertFlag(t, 0, r.RSIOversold, "rsi_oversold")

	assertFloat(t, 0, r.MACDLine, "macd_line")
	assertFloat(t, 0, r.MACDSignal, "macd_signal")
	assertFloat(t, 0, r.MACDHistogram, "macd_histogram")
	assertFlag(t, 0, r.IsMACDBullishCross, "is_macd_bullish_cross")
	assertFlag(t, 0, r.IsMACDBearishCross, "is_macd_bearish_cross")

	assertFloat(t, price, r.BBUpper, "bb_upper")
	assertFloat(t, price, r.BBLower, "bb_lower")
	assertFloat(t, 0, r.BBBandwidthPercent, "bb_bandwidth_percent")
	assertFlag(t, 1, r.IsBBSqueeze, "is_bb_squeeze")

	assertFloat(t, 0, r.ADX14, "adx_14")
	assertFloat(t, 0, r.DIPlus, "di_plus")
	assertFloat(t, 0, r.DIMinus, "di_minus")
	assertFlag(t, 0, r.IsStrongTrend, "is_strong_trend")

	assertFloat(t, 100, r.RSRatio, "rs_ratio")
	assertFloat(t, 0, r.RSMomentum, "rs_momentum")

	// universe fields stay empty until the orchestrator fills them
	assert.False(t, r.RSPercentile.Valid)
	assert.False(t, r.McClellanOscillator.Valid)
}

func TestComputeRisingSeries(t *testing.T) {
	e := newTestEngine()
	bars := risingBars("UP", 300)
	r, err := e.Compute("UP", bars, lastDate(bars))
	require.NoError(t, err)

	assertFlag(t, 1, r.IsMAStacked, "is_ma_stacked")
	assertFlag(t, 2, r.Stage, "stage")
	assert.Equal(t, "2B", r.StageDetail.String)
	assertFloat(t, 100, r.DarvasPositionPercent, "darvas_position_percent")
	assertFloat(t, 100, r.RSI14, "rsi_14")
	assertFloat(t, 100, r.ADX14, "adx_14")
	assertFloat(t, 0, r.DIMinus, "di_minus")
	assertFlag(t, 1, r.IsStrongTrend, "is_strong_trend")
	assertFloat(t, 1, r.Change1DPercent, "change_1d_percent")
	assertFlag(t, 1, r.IsNew20DHigh, "is_new_20d_high")
	assertFlag(t, 0, r.IsNew20DLow, "is_new_20d_low")
	assertFlag(t, 0, r.VCPScore, "vcp_score")
	assert.Greater(t, r.MACDLine.Float64, 0.0)
	assert.Greater(t, r.DistanceFromSMA200Percent.Float64, 0.0)
}

func TestComputeRandomWalkInvariants(t *testing.T) {
	e := newTestEngine()
	bars := walkBars("WALK", 320, 7)

	for i := 200; i < len(bars); i++ {
		r, err := e.Compute("WALK", bars, bars[i].Date)
		require.NoErrorf(t, err, "bar %d", i)

		if r.RSI14.Valid {
			assert.GreaterOrEqual(t, r.RSI14.Float64, 0.0)
			assert.LessOrEqual(t, r.RSI14.Float64, 100.0)
			assert.Equal(t, r.RSI14.Float64 < 30, r.RSIOversold.Int64 == 1)
			assert.Equal(t, r.RSI14.Float64 > 70, r.RSIOverbought.Int64 == 1)
		}

		require.True(t, r.BBMiddle.Valid)
		assert.LessOrEqual(t, r.BBLower.Float64, r.BBMiddle.Float64)
		assert.LessOrEqual(t, r.BBMiddle.Float64, r.BBUpper.Float64)

		stacked := above(bars[i].Close, r.EMA10.Float64) &&
			above(r.EMA10.Float64, r.SMA20.Float64) &&
			above(r.SMA20.Float64, r.SMA50.Float64) &&
			above(r.SMA50.Float64, r.SMA100.Float64) &&
			above(r.SMA100.Float64, r.SMA200.Float64)
		assert.Equal(t, stacked, r.IsMAStacked.Int64 == 1)

		assert.False(t, r.IsMACDBullishCross.Int64 == 1 && r.IsMACDBearishCross.Int64 == 1)
		assert.Contains(t, []int64{1, 2, 3, 4}, r.Stage.Int64)
		assert.GreaterOrEqual(t, r.DarvasPositionPercent.Float64, 0.0)
		assert.LessOrEqual(t, r.DarvasPositionPercent.Float64, 100.0)
		assert.GreaterOrEqual(t, r.VCPScore.Int64, int64(0))
		assert.LessOrEqual(t, r.VCPScore.Int64, int64(5))
		assert.Equal(t, bars[i].Close >= bars[i].Open, r.IsGreenCandle.Int64 == 1)
	}
}

func TestComputeIgnoresLaterBars(t *testing.T) {
	e := newTestEngine()
	bars := walkBars("WALK", 300, 11)
	target := bars[250].Date

	full, err := e.Compute("WALK", bars, target)
	require.NoError(t, err)
	cut, err := e.Compute("WALK", bars[:251], target)
	require.NoError(t, err)
	assert.Equal(t, cut, full)
}

func TestComputeVolumeWithoutData(t *testing.T) {
	e := newTestEngine()
	bars := flatBars("NOVOL", 250, 100)
	for k := range bars {
		bars[k].Volume = null.Int{}
	}
	r, err := e.Compute("NOVOL", bars, lastDate(bars))
	require.NoError(t, err)
	assert.False(t, r.Volume50DAvg.Valid)
	assert.False(t, r.RVOL.Valid)
	assert.False(t, r.IsVolumeSurge.Valid)

	// only today's volume missing: average exists, RVOL does not
	bars = flatBars("GAP", 250, 100)
	bars[len(bars)-1].Volume = null.Int{}
	r, err = e.Compute("GAP", bars, lastDate(bars))
	require.NoError(t, err)
	assert.Equal(t, null.IntFrom(1000), r.Volume50DAvg)
	assert.False(t, r.RVOL.Valid)
}

func TestComputeVolumeSurge(t *testing.T) {
	e := newTestEngine()
	bars := flatBars("SURGE", 250, 100)
	bars[len(bars)-1].Volume = null.IntFrom(1500)
	r, err := e.Compute("SURGE", bars, lastDate(bars))
	require.NoError(t, err)
	assertFloat(t, 1.5, r.RVOL, "rvol")
	assertFlag(t, 1, r.IsVolumeSurge, "is_volume_surge")
}

// narrowing sets the last len(ranges) bars to the given high-low widths
// around a close of 100.
func narrowing(bars []model.Bar, ranges ...float64) {
	off := len(bars) - len(ranges)
	for k, w := range ranges {
		b := &bars[off+k]
		b.High, b.Low = 100+w/2, 100-w/2
	}
}

func TestComputeVCPScore(t *testing.T) {
	e := newTestEngine()
	cases := []struct {
		name   string
		ranges []float64
		want   int64
	}{
		{"capped at five", []float64{8, 7, 6, 5, 4, 3, 2}, 5},
		{"three contractions", []float64{1, 6, 5, 4, 3}, 3},
		{"broken run", []float64{3, 5, 4}, 1},
		{"widening today", []float64{3, 2, 4}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bars := flatBars("VCP", 250, 100)
			narrowing(bars, tc.ranges...)
			r, err := e.Compute("VCP", bars, lastDate(bars))
			require.NoError(t, err)
			assertFlag(t, tc.want, r.VCPScore, "vcp_score")
		})
	}
}

func TestComputeRotationAgainstBenchmark(t *testing.T) {
	bars := walkBars("REL", 260, 3)
	index := make([]model.Bar, len(bars))
	for k, b := range bars {
		index[k] = model.Bar{Symbol: "NIFTY 50", Date: b.Date, Open: b.Open / 2, High: b.High / 2, Low: b.Low / 2, Close: b.Close / 2}
	}

	e := NewEngine(Options{}, NewBenchmark("NIFTY 50", index))
	r, err := e.Compute("REL", bars, lastDate(bars))
	require.NoError(t, err)
	// a constant RS line sits exactly on its own average
	assertFloat(t, 100, r.RSRatio, "rs_ratio")
	assertFloat(t, 0, r.RSMomentum, "rs_momentum")

	// the index has no bar on the target date
	e = NewEngine(Options{}, NewBenchmark("NIFTY 50", index[:len(index)-1]))
	r, err = e.Compute("REL", bars, lastDate(bars))
	require.NoError(t, err)
	assert.False(t, r.RSRatio.Valid)
	assert.False(t, r.RSMomentum.Valid)
}

func TestComputeRotationProxy(t *testing.T) {
	e := newTestEngine()
	bars := risingBars("UP", 250)
	r, err := e.Compute("UP", bars, lastDate(bars))
	require.NoError(t, err)

	closes := make([]float64, len(bars))
	for k, b := range bars {
		closes[k] = b.Close
	}
	i := len(closes) - 1
	ratio := 100 * closes[i] / indicator.Mean(closes[i-9:i+1])
	prev := 100 * closes[i-5] / indicator.Mean(closes[i-14:i-4])
	assertFloat(t, ratio, r.RSRatio, "rs_ratio")
	assert.InDelta(t, (ratio-prev)/prev*100, r.RSMomentum.Float64, 1e-9)
	assert.False(t, math.IsNaN(r.RSMomentum.Float64))
}

func TestNewBenchmarkEmpty(t *testing.T) {
	assert.Nil(t, NewBenchmark("NIFTY 50", nil))
	var b *Benchmark
	_, ok := b.Close(day0)
	assert.False(t, ok)
	assert.Zero(t, b.Len())
}

func TestClassifyStage(t *testing.T) {
	f := null.FloatFrom
	cases := []struct {
		name       string
		close      float64
		sma50      null.Float
		sma200     null.Float
		darvas     null.Float
		extension  null.Float
		wantStage  int64
		wantDetail string
	}{
		{"averages unavailable", 100, null.Float{}, f(90), f(95), f(1), 1, "1"},
		{"on both averages", 100, f(100), f(100), f(50), null.Float{}, 1, "1"},
		{"on both averages with drift", 123.45, f(123.44999999999989), f(123.45000000000044), f(50), null.Float{}, 1, "1"},
		{"2B near box top", 110, f(100), f(90), f(95), f(8), 2, "2B"},
		{"2C extended", 110, f(100), f(90), f(50), f(8), 2, "2C"},
		{"2A", 110, f(100), f(90), f(50), f(3), 2, "2A"},
		{"2A without box or extension", 110, f(100), f(90), null.Float{}, null.Float{}, 2, "2A"},
		{"between averages, under sma50", 95, f(100), f(90), f(50), f(0), 3, "3"},
		{"between averages, under sma200", 105, f(110), f(100), f(50), f(0), 3, "3"},
		{"on sma50 only", 100, f(100), f(90), f(50), f(0), 3, "3"},
		{"below both", 80, f(100), f(90), f(10), f(-5), 4, "4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &model.MetricRecord{
				SMA50:                 tc.sma50,
				SMA200:                tc.sma200,
				DarvasPositionPercent: tc.darvas,
				ATRExtensionFromSMA50: tc.extension,
			}
			classifyStage(r, tc.close)
			assertFlag(t, tc.wantStage, r.Stage, "stage")
			assert.Equal(t, null.StringFrom(tc.wantDetail), r.StageDetail)
		})
	}
}

// rangedBars is flat at 100 with a 4-point daily range, so every true
// range is 4 until the last bar, which is replaced by last.
func rangedBars(n int, last model.Bar) []model.Bar {
	bars := flatBars("RNG", n, 100)
	for k := range bars {
		bars[k].High, bars[k].Low = 102, 98
	}
	last.Symbol, last.Date, last.Volume = "RNG", bars[n-1].Date, bars[n-1].Volume
	bars[n-1] = last
	return bars
}

func TestComputeExtensionAndLoD(t *testing.T) {
	cases := []struct {
		name       string
		last       model.Bar
		trueRange  float64
		darvasHigh float64
		tight      int64
		detail     string
	}{
		{"wide low", model.Bar{Open: 100, High: 105, Low: 99, Close: 104}, 6, 105, 0, "2A"},
		{"tight low", model.Bar{Open: 100, High: 104.5, Low: 103.5, Close: 104}, 4.5, 104.5, 1, "2B"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bars := rangedBars(250, tc.last)
			r, err := newTestEngine().Compute("RNG", bars, lastDate(bars))
			require.NoError(t, err)

			c := tc.last.Close
			atr := (13*4 + tc.trueRange) / 14
			sma50 := (49*100 + c) / 50
			assertFloat(t, atr, r.ATR14, "atr_14")
			assertFloat(t, sma50, r.SMA50, "sma_50")
			assertFloat(t, (c/sma50-1)/(atr/c), r.ATRExtensionFromSMA50, "atr_extension_from_sma50")
			assertFloat(t, (tc.last.Low-c)/atr*100, r.LoDATRPercent, "lod_atr_percent")
			assertFlag(t, tc.tight, r.IsLoDTight, "is_lod_tight")

			assertFloat(t, tc.darvasHigh, r.Darvas20DHigh, "darvas_20d_high")
			assertFloat(t, 98, r.Darvas20DLow, "darvas_20d_low")
			assertFloat(t, (c-98)/(tc.darvasHigh-98)*100, r.DarvasPositionPercent, "darvas_position_percent")

			assertFlag(t, 2, r.Stage, "stage")
			assert.Equal(t, tc.detail, r.StageDetail.String)
		})
	}
}

// waveBars oscillates with a 40-bar period, so line-signal changes sign
// several times over the last hundred bars.
func waveBars(n int) []model.Bar {
	bars := make([]model.Bar, n)
	prev := 100.0
	for k, d := range weekdays(n) {
		c := 100 + 10*math.Sin(2*math.Pi*float64(k)/40)
		bars[k] = model.Bar{
			Symbol: "WAVE", Date: d,
			Open: prev, High: math.Max(prev, c) + 0.5, Low: math.Min(prev, c) - 0.5, Close: c,
			Volume: null.IntFrom(1000),
		}
		prev = c
	}
	return bars
}

func TestComputeMACDCrosses(t *testing.T) {
	e := newTestEngine()
	bars := waveBars(320)
	closes := make([]float64, len(bars))
	for k, b := range bars {
		closes[k] = b.Close
	}
	m := indicator.MACD(closes, macdFast, macdSlow, macdSignal)

	var bullish, bearish int
	for i := 200; i < len(bars); i++ {
		r, err := e.Compute("WAVE", bars, bars[i].Date)
		require.NoError(t, err)

		prev := m.Line[i-1] - m.Signal[i-1]
		cur := m.Line[i] - m.Signal[i]
		wantBull, wantBear := int64(0), int64(0)
		if prev <= 0 && cur > 0 {
			wantBull = 1
			bullish++
		}
		if prev >= 0 && cur < 0 {
			wantBear = 1
			bearish++
		}
		assertFlag(t, wantBull, r.IsMACDBullishCross, fmt.Sprintf("bullish cross at %d", i))
		assertFlag(t, wantBear, r.IsMACDBearishCross, fmt.Sprintf("bearish cross at %d", i))
		assertFloat(t, cur, r.MACDHistogram, "macd_histogram")
	}
	assert.Positive(t, bullish, "wave must produce bullish crosses")
	assert.Positive(t, bearish, "wave must produce bearish crosses")
}
