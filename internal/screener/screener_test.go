package screener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-metrics/internal/model"
)

var (
	dayOne = time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)
	dayTwo = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
)

type fakeReader struct {
	byDate map[time.Time][]*model.MetricRecord
	err    error
}

func (f *fakeReader) LatestDate(context.Context) (time.Time, bool, error) {
	var latest time.Time
	for d := range f.byDate {
		if d.After(latest) {
			latest = d
		}
	}
	return latest, !latest.IsZero(), f.err
}

func (f *fakeReader) MetricsForDate(_ context.Context, d time.Time) ([]*model.MetricRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	// screeners sort in place; hand out a copy
	return append([]*model.MetricRecord(nil), f.byDate[d]...), nil
}

func (f *fakeReader) LatestMetrics(context.Context, string, int) ([]*model.MetricRecord, error) {
	return nil, nil
}

type fakeNames map[string]string

func (f fakeNames) SecurityNames(context.Context) (map[string]string, error) { return f, nil }

func universe() []*model.MetricRecord {
	return []*model.MetricRecord{
		{
			Symbol: "AAA", Change1DPercent: null.FloatFrom(6), RVOL: null.FloatFrom(2.5),
			Change1WPercent: null.FloatFrom(25), RSPercentile: null.FloatFrom(99), VARSScore: null.FloatFrom(30),
			Stage: null.IntFrom(2), StageDetail: null.StringFrom("2A"), IsMAStacked: null.IntFrom(1), VCPScore: null.IntFrom(3),
			ATRExtensionFromSMA50: null.FloatFrom(2), IsGreenCandle: null.IntFrom(1),
			DistanceFromSMA50Percent: null.FloatFrom(5), DistanceFromSMA200Percent: null.FloatFrom(12),
			IsNew20DHigh: null.IntFrom(1), LoDATRPercent: null.FloatFrom(40), IsLoDTight: null.IntFrom(1),
			RSRatio: null.FloatFrom(104), RSMomentum: null.FloatFrom(101),
			McClellanOscillator: null.FloatFrom(12.5), McClellanSummation: null.FloatFrom(300),
			UniverseUpCount: null.IntFrom(2), UniverseDownCount: null.IntFrom(2),
		},
		{
			Symbol: "BBB", Change1DPercent: null.FloatFrom(4), RVOL: null.FloatFrom(1.5),
			Change1WPercent: null.FloatFrom(-30), RSPercentile: null.FloatFrom(97), VARSScore: null.FloatFrom(45),
			Stage: null.IntFrom(3), StageDetail: null.StringFrom("3"), IsMAStacked: null.IntFrom(0), VCPScore: null.IntFrom(4),
			ATRExtensionFromSMA50: null.FloatFrom(9), IsGreenCandle: null.IntFrom(1),
			DistanceFromSMA50Percent: null.FloatFrom(-1), DistanceFromSMA200Percent: null.FloatFrom(3),
			LoDATRPercent: null.FloatFrom(80), IsLoDTight: null.IntFrom(0),
			RSRatio: null.FloatFrom(103), RSMomentum: null.FloatFrom(99),
		},
		{
			Symbol: "CCC", Change1DPercent: null.FloatFrom(10), RVOL: null.FloatFrom(1.2),
			Change1WPercent: null.FloatFrom(19.9), RSPercentile: null.FloatFrom(80),
			Stage: null.IntFrom(2), StageDetail: null.StringFrom("2A"), IsMAStacked: null.IntFrom(1), VCPScore: null.IntFrom(2),
			ATRExtensionFromSMA50: null.FloatFrom(-1), IsGreenCandle: null.IntFrom(0),
			DistanceFromSMA50Percent: null.FloatFrom(1), DistanceFromSMA200Percent: null.FloatFrom(-2),
			IsNew20DLow: null.IntFrom(0), RSRatio: null.FloatFrom(97), RSMomentum: null.FloatFrom(102),
		},
		{
			// brand-new listing: most metrics missing
			Symbol: "NEW", RVOL: null.FloatFrom(3), Change1DPercent: null.FloatFrom(5),
			IsNew20DLow: null.IntFrom(1),
		},
	}
}

func newService() *Service {
	return New(&fakeReader{byDate: map[time.Time][]*model.MetricRecord{
		dayOne: {{Symbol: "OLD", RVOL: null.FloatFrom(9)}},
		dayTwo: universe(),
	}}, fakeNames{"AAA": "Alpha Ltd"})
}

func symbols(res *Result) []string {
	var out []string
	for _, r := range res.Results {
		out = append(out, r["symbol"].(string))
	}
	return out
}

func TestRunDefaultsToLatestDate(t *testing.T) {
	res, err := newService().Run(context.Background(), "high-volume", time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-15", res.Date)
	assert.Equal(t, []string{"NEW", "AAA"}, symbols(res))
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, "Alpha Ltd", res.Results[1]["name"])
	assert.Equal(t, "", res.Results[0]["name"])

	res, err = newService().Run(context.Background(), "high-volume", dayOne, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"OLD"}, symbols(res))
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	_, err := newService().Run(ctx, "nope", dayTwo, nil)
	assert.ErrorIs(t, err, ErrUnknownScreener)

	_, err = New(&fakeReader{}, nil).Run(ctx, "rs-leaders", time.Time{}, nil)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = newService().Run(ctx, "breakouts-4percent", dayTwo, Params{"min_rvol": "lots"})
	assert.ErrorIs(t, err, ErrBadParam)

	_, err = newService().Run(ctx, "breakouts-4percent", dayTwo, Params{"limit": "0"})
	assert.ErrorIs(t, err, ErrBadParam)

	_, err = newService().Run(ctx, "weekly-movers", dayTwo, Params{"direction": "sideways"})
	assert.ErrorIs(t, err, ErrBadParam)

	boom := errors.New("db gone")
	_, err = New(&fakeReader{err: boom}, nil).Run(ctx, "rs-leaders", dayTwo, nil)
	assert.ErrorIs(t, err, boom)
}

func TestBreakouts(t *testing.T) {
	res, err := newService().Run(context.Background(), "breakouts-4percent", dayTwo, nil)
	require.NoError(t, err)
	// CCC fails RVOL; thresholds are inclusive
	assert.Equal(t, []string{"AAA", "NEW", "BBB"}, symbols(res))
	assert.Equal(t, 4.0, res.Criteria["min_change_percent"])

	res, err = newService().Run(context.Background(), "breakouts-4percent", dayTwo, Params{"min_change": "5.5", "limit": "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, symbols(res))
}

func TestRSLeadersSortedByVARS(t *testing.T) {
	res, err := newService().Run(context.Background(), "rs-leaders", dayTwo, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"BBB", "AAA"}, symbols(res))
	assert.Equal(t, null.FloatFrom(45), res.Results[0]["vars_score"])
}

func TestMAStacked(t *testing.T) {
	res, err := newService().Run(context.Background(), "ma-stacked", dayTwo, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "CCC"}, symbols(res))

	res, err = newService().Run(context.Background(), "ma-stacked", dayTwo, Params{"min_vcp": "3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA"}, symbols(res))
}

func TestWeeklyMovers(t *testing.T) {
	cases := map[string][]string{
		"both": {"BBB", "AAA"},
		"up":   {"AAA"},
		"down": {"BBB"},
	}
	for dir, want := range cases {
		t.Run(dir, func(t *testing.T) {
			res, err := newService().Run(context.Background(), "weekly-movers", dayTwo, Params{"direction": dir})
			require.NoError(t, err)
			assert.Equal(t, want, symbols(res))
		})
	}
}

func TestMomentumWatchlist(t *testing.T) {
	res, err := newService().Run(context.Background(), "momentum-watchlist", dayTwo, nil)
	require.NoError(t, err)
	// BBB is stage 3 but over-extended; least extended first
	assert.Equal(t, []string{"CCC", "AAA"}, symbols(res))
	assert.Equal(t, false, res.Results[0]["is_green_candle"])
	assert.Equal(t, true, res.Results[1]["is_tight"])
}

func TestRRGQuadrants(t *testing.T) {
	assert.Equal(t, Leading, Classify(101, 101))
	assert.Equal(t, Weakening, Classify(101, 100))
	assert.Equal(t, Lagging, Classify(100, 100))
	assert.Equal(t, Improving, Classify(99, 101))

	res, err := newService().Run(context.Background(), "rrg-quadrants", dayTwo, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, symbols(res))
	assert.Equal(t, "Weakening", res.Results[1]["quadrant"])

	res, err = newService().Run(context.Background(), "rrg-quadrants", dayTwo, Params{"quadrant": "Improving"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CCC"}, symbols(res))
}

func TestStageAnalysis(t *testing.T) {
	res, err := newService().Run(context.Background(), "stage-analysis", dayTwo, nil)
	require.NoError(t, err)
	require.NotNil(t, res.TotalStocks)
	assert.Equal(t, 4, *res.TotalStocks)
	require.Len(t, res.Breakdown, 3)
	assert.Equal(t, 3, res.Count)

	unstaged, s2, s3 := res.Breakdown[0], res.Breakdown[1], res.Breakdown[2]
	assert.False(t, unstaged.Stage.Valid)
	assert.Equal(t, 1, unstaged.Count)
	assert.False(t, unstaged.AvgLoDATRPercent.Valid)

	assert.Equal(t, "2A", s2.StageDetail.String)
	assert.Equal(t, 2, s2.Count)
	assert.Equal(t, 50.0, s2.Percentage)
	assert.Equal(t, null.FloatFrom(40), s2.AvgLoDATRPercent, "null LoD values are not averaged")
	assert.Equal(t, 1, s2.TightLoDCount)

	assert.Equal(t, int64(3), s3.Stage.Int64)
	assert.Equal(t, 25.0, s3.Percentage)
}

func TestBreadthMetrics(t *testing.T) {
	res, err := newService().Run(context.Background(), "breadth-metrics", dayTwo, nil)
	require.NoError(t, err)
	b := res.Breadth
	require.NotNil(t, b)

	assert.Equal(t, 2, b.UpCount)
	assert.Equal(t, 2, b.DownCount)
	assert.Equal(t, null.FloatFrom(1), b.UpDownRatio)
	assert.Equal(t, 2, b.AboveSMA50Count)
	assert.Equal(t, 50.0, b.AboveSMA50Percent)
	assert.Equal(t, 2, b.AboveSMA200Count)
	assert.Equal(t, 1, b.New20DHighs)
	assert.Equal(t, 1, b.New20DLows)
	assert.Equal(t, null.FloatFrom(1), b.HighLowRatio)
	assert.Equal(t, null.FloatFrom(12.5), b.McClellanOscillator)
	assert.Equal(t, null.IntFrom(2), b.UniverseUpCount)
}

func TestBreadthMetricsEmptyRatios(t *testing.T) {
	recs := []*model.MetricRecord{{Symbol: "A", IsGreenCandle: null.IntFrom(1), IsNew20DHigh: null.IntFrom(1)}}
	res := &Result{}
	require.NoError(t, breadthMetrics(recs, nil, res))
	assert.False(t, res.Breadth.UpDownRatio.Valid, "no decliners")
	assert.False(t, res.Breadth.HighLowRatio.Valid, "no new lows")
}

func TestNames(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "breakouts-4percent")
	assert.Contains(t, names, "breadth-metrics")
	assert.IsIncreasing(t, names)
}
