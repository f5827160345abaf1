package screener

import (
	"sort"

	"github.com/guregu/null/v6"

	"nse-metrics/internal/model"
)

// StageBucket aggregates the records of one (stage, stage_detail) pair.
type StageBucket struct {
	Stage            null.Int    `json:"stage"`
	StageDetail      null.String `json:"stage_detail"`
	Count            int         `json:"count"`
	Percentage       float64     `json:"percentage"`
	AvgLoDATRPercent null.Float  `json:"avg_lod_atr_percent"`
	TightLoDCount    int         `json:"tight_lod_count"`
}

func stageAnalysis(recs []*model.MetricRecord, _ Params, res *Result) error {
	type key struct {
		stage  null.Int
		detail null.String
	}
	type acc struct {
		bucket StageBucket
		lodSum float64
		lodN   int
	}

	groups := map[key]*acc{}
	for _, r := range recs {
		k := key{r.Stage, r.StageDetail}
		a, ok := groups[k]
		if !ok {
			a = &acc{bucket: StageBucket{Stage: r.Stage, StageDetail: r.StageDetail}}
			groups[k] = a
		}
		a.bucket.Count++
		if r.LoDATRPercent.Valid {
			a.lodSum += r.LoDATRPercent.Float64
			a.lodN++
		}
		if isSet(r.IsLoDTight) {
			a.bucket.TightLoDCount++
		}
	}

	total := len(recs)
	res.TotalStocks = &total
	res.Breakdown = make([]StageBucket, 0, len(groups))
	for _, a := range groups {
		b := a.bucket
		b.Percentage = percentOf(b.Count, total)
		if a.lodN > 0 {
			b.AvgLoDATRPercent = null.FloatFrom(a.lodSum / float64(a.lodN))
		}
		res.Breakdown = append(res.Breakdown, b)
	}
	// null stage sorts as 0
	sort.Slice(res.Breakdown, func(i, j int) bool {
		a, b := res.Breakdown[i], res.Breakdown[j]
		if a.Stage.Int64 != b.Stage.Int64 {
			return a.Stage.Int64 < b.Stage.Int64
		}
		return a.StageDetail.String < b.StageDetail.String
	})
	return nil
}

// BreadthReport summarises the universe on one date.
type BreadthReport struct {
	UpCount     int        `json:"up_count"`
	DownCount   int        `json:"down_count"`
	UpDownRatio null.Float `json:"up_down_ratio"`

	AboveSMA50Count    int     `json:"above_sma50_count"`
	AboveSMA50Percent  float64 `json:"above_sma50_percent"`
	AboveSMA200Count   int     `json:"above_sma200_count"`
	AboveSMA200Percent float64 `json:"above_sma200_percent"`

	New20DHighs  int        `json:"new_20d_highs"`
	New20DLows   int        `json:"new_20d_lows"`
	HighLowRatio null.Float `json:"high_low_ratio"`

	McClellanOscillator null.Float `json:"mcclellan_oscillator"`
	McClellanSummation  null.Float `json:"mcclellan_summation"`
	UniverseUpCount     null.Int   `json:"universe_up_count"`
	UniverseDownCount   null.Int   `json:"universe_down_count"`
}

func breadthMetrics(recs []*model.MetricRecord, _ Params, res *Result) error {
	rep := &BreadthReport{}
	for _, r := range recs {
		if isSet(r.IsGreenCandle) {
			rep.UpCount++
		}
		if r.DistanceFromSMA50Percent.Valid && r.DistanceFromSMA50Percent.Float64 > 0 {
			rep.AboveSMA50Count++
		}
		if r.DistanceFromSMA200Percent.Valid && r.DistanceFromSMA200Percent.Float64 > 0 {
			rep.AboveSMA200Count++
		}
		if isSet(r.IsNew20DHigh) {
			rep.New20DHighs++
		}
		if isSet(r.IsNew20DLow) {
			rep.New20DLows++
		}
	}

	total := len(recs)
	rep.DownCount = total - rep.UpCount
	rep.UpDownRatio = ratio(rep.UpCount, rep.DownCount)
	rep.AboveSMA50Percent = percentOf(rep.AboveSMA50Count, total)
	rep.AboveSMA200Percent = percentOf(rep.AboveSMA200Count, total)
	rep.HighLowRatio = ratio(rep.New20DHighs, rep.New20DLows)

	// breadth columns are identical on every record of a date
	if total > 0 {
		first := recs[0]
		rep.McClellanOscillator = first.McClellanOscillator
		rep.McClellanSummation = first.McClellanSummation
		rep.UniverseUpCount = first.UniverseUpCount
		rep.UniverseDownCount = first.UniverseDownCount
	}

	res.TotalStocks = &total
	res.Breadth = rep
	return nil
}
