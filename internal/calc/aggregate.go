package calc

import (
	"sort"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"nse-metrics/internal/indicator"
	"nse-metrics/internal/model"
)

// ComputeBreadth counts up (close >= open) and down bars on target and
// derives the McClellan oscillator, EMA19 - EMA39 of the daily
// advance-decline differential over every loaded date up to target, and
// its running sum. Both McClellan values are 0 with fewer than 40 dates.
func ComputeBreadth(history map[string][]model.Bar, target time.Time) model.Breadth {
	target = model.Day(target)
	out := model.Breadth{Date: target}

	net := make(map[time.Time]int)
	for _, bars := range history {
		for _, b := range bars {
			d := model.Day(b.Date)
			if d.After(target) {
				continue
			}
			up := b.Close >= b.Open
			if up {
				net[d]++
			} else {
				net[d]--
			}
			if d.Equal(target) {
				if up {
					out.UpCount++
				} else {
					out.DownCount++
				}
			}
		}
	}

	if len(net) < mcclellanMinDay {
		return out
	}
	dates := make([]time.Time, 0, len(net))
	for d := range net {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(a, b int) bool { return dates[a].Before(dates[b]) })

	diffs := make([]float64, len(dates))
	for k, d := range dates {
		diffs[k] = float64(net[d])
	}
	fast := indicator.Series(indicator.NewEMA(mcclellanFast), diffs)
	slow := indicator.Series(indicator.NewEMA(mcclellanSlow), diffs)

	var osc, sum float64
	for k := range diffs {
		v := fast[k] - slow[k]
		if indicator.IsMissing(v) {
			continue
		}
		osc = v
		sum += v
	}
	out.McClellanOscillator = osc
	out.McClellanSummation = sum
	return out
}

// RankRelativeStrength ranks every record's 1M change ascending and sets
// rs_percentile = rank/(N-1)*100 (50 when N is 1) to 2 decimals,
// VARS = percentile/ADR% and VARW = (100-percentile)/ADR% to 4 decimals.
// N counts only records with a 1M change; the rest keep null scores.
// VARS and VARW stay null when ADR% is missing or not positive.
func RankRelativeStrength(records []*model.MetricRecord) {
	ranked := make([]*model.MetricRecord, 0, len(records))
	for _, r := range records {
		if r != nil && r.Change1MPercent.Valid {
			ranked = append(ranked, r)
		}
	}
	if len(ranked) == 0 {
		return
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		ca, cb := ranked[a].Change1MPercent.Float64, ranked[b].Change1MPercent.Float64
		if ca != cb {
			return ca < cb
		}
		return ranked[a].Symbol < ranked[b].Symbol
	})

	n := len(ranked)
	for rank, r := range ranked {
		p := 50.0
		if n > 1 {
			p = float64(rank) / float64(n-1) * 100
		}
		r.RSPercentile = null.FloatFrom(round(p, 2))
		r.VARSScore, r.VARWScore = null.Float{}, null.Float{}
		if r.ADRPercent.Valid && r.ADRPercent.Float64 > 0 {
			adr := r.ADRPercent.Float64
			r.VARSScore = null.FloatFrom(round(p/adr, 4))
			r.VARWScore = null.FloatFrom(round((100-p)/adr, 4))
		}
	}
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
