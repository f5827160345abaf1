package screener

import (
	"fmt"
	"math"

	"github.com/guregu/null/v6"

	"nse-metrics/internal/model"
)

func breakouts(recs []*model.MetricRecord, p Params, res *Result) error {
	minChange, err := p.float("min_change", 4)
	if err != nil {
		return err
	}
	minRVOL, err := p.float("min_rvol", 1.5)
	if err != nil {
		return err
	}
	limit, err := p.limit(100)
	if err != nil {
		return err
	}

	hits := filter(recs, func(r *model.MetricRecord) bool {
		return atLeast(r.Change1DPercent, minChange) && atLeast(r.RVOL, minRVOL)
	})
	sortBy(hits, func(r *model.MetricRecord) null.Float { return r.Change1DPercent }, true)

	res.Criteria = map[string]any{"min_change_percent": minChange, "min_rvol": minRVOL}
	for _, r := range head(hits, limit) {
		res.Results = append(res.Results, Row{
			"symbol":         r.Symbol,
			"change_percent": r.Change1DPercent,
			"rvol":           r.RVOL,
			"volume_50d_avg": r.Volume50DAvg,
			"rs_percentile":  r.RSPercentile,
			"atr_percent":    r.ATRPercent,
			"stage":          r.Stage,
		})
	}
	return nil
}

func rsLeaders(recs []*model.MetricRecord, p Params, res *Result) error {
	minRS, err := p.float("min_rs", 97)
	if err != nil {
		return err
	}
	minStage, err := p.int("min_stage", 2)
	if err != nil {
		return err
	}
	limit, err := p.limit(100)
	if err != nil {
		return err
	}

	hits := filter(recs, func(r *model.MetricRecord) bool {
		return atLeast(r.RSPercentile, minRS) && r.Stage.Valid && r.Stage.Int64 >= int64(minStage)
	})
	sortBy(hits, func(r *model.MetricRecord) null.Float { return r.VARSScore }, true)

	res.Criteria = map[string]any{"min_rs_percentile": minRS, "min_stage": minStage}
	for _, r := range head(hits, limit) {
		res.Results = append(res.Results, Row{
			"symbol":            r.Symbol,
			"rs_percentile":     r.RSPercentile,
			"vars_score":        r.VARSScore,
			"change_1m_percent": r.Change1MPercent,
			"adr_percent":       r.ADRPercent,
			"stage":             r.Stage,
			"stage_detail":      r.StageDetail,
		})
	}
	return nil
}

func highVolume(recs []*model.MetricRecord, p Params, res *Result) error {
	minRVOL, err := p.float("min_rvol", 2)
	if err != nil {
		return err
	}
	limit, err := p.limit(100)
	if err != nil {
		return err
	}

	hits := filter(recs, func(r *model.MetricRecord) bool { return atLeast(r.RVOL, minRVOL) })
	sortBy(hits, func(r *model.MetricRecord) null.Float { return r.RVOL }, true)

	res.Criteria = map[string]any{"min_rvol": minRVOL}
	for _, r := range head(hits, limit) {
		res.Results = append(res.Results, Row{
			"symbol":         r.Symbol,
			"rvol":           r.RVOL,
			"volume_50d_avg": r.Volume50DAvg,
			"change_percent": r.Change1DPercent,
			"rs_percentile":  r.RSPercentile,
			"atr_percent":    r.ATRPercent,
		})
	}
	return nil
}

func maStacked(recs []*model.MetricRecord, p Params, res *Result) error {
	minVCP, err := p.int("min_vcp", 2)
	if err != nil {
		return err
	}
	stage, err := p.int("stage", 2)
	if err != nil {
		return err
	}
	limit, err := p.limit(100)
	if err != nil {
		return err
	}

	hits := filter(recs, func(r *model.MetricRecord) bool {
		return isSet(r.IsMAStacked) &&
			r.VCPScore.Valid && r.VCPScore.Int64 >= int64(minVCP) &&
			r.Stage.Valid && r.Stage.Int64 == int64(stage)
	})
	sortBy(hits, func(r *model.MetricRecord) null.Float { return r.RSPercentile }, true)

	res.Criteria = map[string]any{"is_ma_stacked": true, "min_vcp_score": minVCP, "stage": stage}
	for _, r := range head(hits, limit) {
		res.Results = append(res.Results, Row{
			"symbol":          r.Symbol,
			"rs_percentile":   r.RSPercentile,
			"vcp_score":       r.VCPScore,
			"stage":           r.Stage,
			"stage_detail":    r.StageDetail,
			"atr_extension":   r.ATRExtensionFromSMA50,
			"darvas_position": r.DarvasPositionPercent,
		})
	}
	return nil
}

func weeklyMovers(recs []*model.MetricRecord, p Params, res *Result) error {
	minChange, err := p.float("min_change", 20)
	if err != nil {
		return err
	}
	limit, err := p.limit(100)
	if err != nil {
		return err
	}
	direction := p["direction"]
	if direction == "" {
		direction = "both"
	}

	var keep func(*model.MetricRecord) bool
	switch direction {
	case "up":
		keep = func(r *model.MetricRecord) bool { return atLeast(r.Change1WPercent, minChange) }
	case "down":
		keep = func(r *model.MetricRecord) bool { return atMost(r.Change1WPercent, -minChange) }
	case "both":
		keep = func(r *model.MetricRecord) bool {
			return atLeast(r.Change1WPercent, minChange) || atMost(r.Change1WPercent, -minChange)
		}
	default:
		return fmt.Errorf("%w direction=%q: want up, down or both", ErrBadParam, direction)
	}

	hits := filter(recs, keep)
	sortBy(hits, func(r *model.MetricRecord) null.Float {
		return null.NewFloat(math.Abs(r.Change1WPercent.Float64), r.Change1WPercent.Valid)
	}, true)

	res.Criteria = map[string]any{"min_change_percent": minChange, "direction": direction}
	for _, r := range head(hits, limit) {
		res.Results = append(res.Results, Row{
			"symbol":            r.Symbol,
			"change_1w_percent": r.Change1WPercent,
			"change_1d_percent": r.Change1DPercent,
			"adr_percent":       r.ADRPercent,
			"rvol":              r.RVOL,
			"stage":             r.Stage,
		})
	}
	return nil
}

// momentumWatchlist lists strong uptrending names close to their SMA50,
// least extended first.
func momentumWatchlist(recs []*model.MetricRecord, p Params, res *Result) error {
	minRS, err := p.float("min_rs", 70)
	if err != nil {
		return err
	}
	maxExt, err := p.float("max_extension", 7)
	if err != nil {
		return err
	}
	minStage, err := p.int("min_stage", 2)
	if err != nil {
		return err
	}
	limit, err := p.limit(50)
	if err != nil {
		return err
	}

	hits := filter(recs, func(r *model.MetricRecord) bool {
		return atLeast(r.RSPercentile, minRS) &&
			r.Stage.Valid && r.Stage.Int64 >= int64(minStage) &&
			atMost(r.ATRExtensionFromSMA50, maxExt)
	})
	sortBy(hits, func(r *model.MetricRecord) null.Float { return r.ATRExtensionFromSMA50 }, false)

	res.Criteria = map[string]any{"min_rs_percentile": minRS, "max_atr_extension": maxExt, "min_stage": minStage}
	for _, r := range head(hits, limit) {
		res.Results = append(res.Results, Row{
			"symbol":            r.Symbol,
			"rs_percentile":     r.RSPercentile,
			"stage":             r.Stage,
			"stage_detail":      r.StageDetail,
			"atr_extension":     r.ATRExtensionFromSMA50,
			"lod_atr_percent":   r.LoDATRPercent,
			"is_tight":          isSet(r.IsLoDTight),
			"is_green_candle":   isSet(r.IsGreenCandle),
			"change_1d_percent": r.Change1DPercent,
		})
	}
	return nil
}

// Quadrant is a relative-rotation classification.
type Quadrant string

const (
	Leading   Quadrant = "Leading"
	Weakening Quadrant = "Weakening"
	Lagging   Quadrant = "Lagging"
	Improving Quadrant = "Improving"
)

// Classify places an (RS-ratio, RS-momentum) point on the rotation graph.
// 100 is the benchmark line on both axes.
func Classify(ratio, momentum float64) Quadrant {
	switch {
	case ratio > 100 && momentum > 100:
		return Leading
	case ratio > 100:
		return Weakening
	case momentum <= 100:
		return Lagging
	default:
		return Improving
	}
}

func rrgQuadrants(recs []*model.MetricRecord, p Params, res *Result) error {
	limit, err := p.limit(500)
	if err != nil {
		return err
	}
	want := Quadrant(p["quadrant"])
	switch want {
	case "", Leading, Weakening, Lagging, Improving:
	default:
		return fmt.Errorf("%w quadrant=%q", ErrBadParam, want)
	}

	hits := filter(recs, func(r *model.MetricRecord) bool {
		if !r.RSRatio.Valid || !r.RSMomentum.Valid {
			return false
		}
		return want == "" || Classify(r.RSRatio.Float64, r.RSMomentum.Float64) == want
	})
	sortBy(hits, func(r *model.MetricRecord) null.Float { return r.RSRatio }, true)

	if want != "" {
		res.Criteria = map[string]any{"quadrant": string(want)}
	}
	for _, r := range head(hits, limit) {
		res.Results = append(res.Results, Row{
			"symbol":            r.Symbol,
			"rs_ratio":          r.RSRatio,
			"rs_momentum":       r.RSMomentum,
			"quadrant":          string(Classify(r.RSRatio.Float64, r.RSMomentum.Float64)),
			"change_1w_percent": r.Change1WPercent,
		})
	}
	return nil
}
