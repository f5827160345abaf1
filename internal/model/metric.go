package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// MetricRecord is one row of calculated_metrics, keyed by (Symbol, Date).
// Every field except the key is nullable; a record is always written whole.
type MetricRecord struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`

	// Price changes
	Change1DPercent null.Float `json:"change_1d_percent"`
	Change1DValue   null.Float `json:"change_1d_value"`
	Change1WPercent null.Float `json:"change_1w_percent"`
	Change1MPercent null.Float `json:"change_1m_percent"`
	Change3MPercent null.Float `json:"change_3m_percent"`
	Change6MPercent null.Float `json:"change_6m_percent"`

	// Relative strength, filled by the universe ranking pass
	RSPercentile null.Float `json:"rs_percentile"`
	VARSScore    null.Float `json:"vars_score"`
	VARWScore    null.Float `json:"varw_score"`

	// Volatility
	ATR14             null.Float `json:"atr_14"`
	ATRPercent        null.Float `json:"atr_percent"`
	ADRPercent        null.Float `json:"adr_percent"`
	TodayRangePercent null.Float `json:"today_range_percent"`

	// Volume
	Volume50DAvg  null.Int   `json:"volume_50d_avg"`
	RVOL          null.Float `json:"rvol"`
	IsVolumeSurge null.Int   `json:"is_volume_surge"`

	// Moving averages
	EMA10                     null.Float `json:"ema_10"`
	SMA20                     null.Float `json:"sma_20"`
	SMA50                     null.Float `json:"sma_50"`
	SMA100                    null.Float `json:"sma_100"`
	SMA200                    null.Float `json:"sma_200"`
	DistanceFromEMA10Percent  null.Float `json:"distance_from_ema10_percent"`
	DistanceFromSMA50Percent  null.Float `json:"distance_from_sma50_percent"`
	DistanceFromSMA200Percent null.Float `json:"distance_from_sma200_percent"`
	IsMAStacked               null.Int   `json:"is_ma_stacked"`

	// Extension
	ATRExtensionFromSMA50 null.Float `json:"atr_extension_from_sma50"`
	LoDATRPercent         null.Float `json:"lod_atr_percent"`
	IsLoDTight            null.Int   `json:"is_lod_tight"`

	// Darvas box and range extremes
	Darvas20DHigh         null.Float  `json:"darvas_20d_high"`
	Darvas20DLow          null.Float  `json:"darvas_20d_low"`
	DarvasPositionPercent null.Float  `json:"darvas_position_percent"`
	IsNew20DHigh          null.Int    `json:"is_new_20d_high"`
	IsNew20DLow           null.Int    `json:"is_new_20d_low"`
	ORHProxy              null.Float  `json:"orh_proxy"`
	IsM30Reclaim          null.Int    `json:"is_m30_reclaim"`
	VCPScore              null.Int    `json:"vcp_score"`
	Stage                 null.Int    `json:"stage"`
	StageDetail           null.String `json:"stage_detail"`

	// Universe breadth, identical for every record of a date
	UniverseUpCount     null.Int   `json:"universe_up_count"`
	UniverseDownCount   null.Int   `json:"universe_down_count"`
	McClellanOscillator null.Float `json:"mcclellan_oscillator"`
	McClellanSummation  null.Float `json:"mcclellan_summation"`

	// Relative rotation
	RSRatio    null.Float `json:"rs_ratio"`
	RSMomentum null.Float `json:"rs_momentum"`

	IsGreenCandle null.Int `json:"is_green_candle"`

	// Oscillators
	RSI14              null.Float `json:"rsi_14"`
	RSIOversold        null.Int   `json:"rsi_oversold"`
	RSIOverbought      null.Int   `json:"rsi_overbought"`
	MACDLine           null.Float `json:"macd_line"`
	MACDSignal         null.Float `json:"macd_signal"`
	MACDHistogram      null.Float `json:"macd_histogram"`
	IsMACDBullishCross null.Int   `json:"is_macd_bullish_cross"`
	IsMACDBearishCross null.Int   `json:"is_macd_bearish_cross"`
	BBUpper            null.Float `json:"bb_upper"`
	BBMiddle           null.Float `json:"bb_middle"`
	BBLower            null.Float `json:"bb_lower"`
	BBBandwidthPercent null.Float `json:"bb_bandwidth_percent"`
	IsBBSqueeze        null.Int   `json:"is_bb_squeeze"`
	ADX14              null.Float `json:"adx_14"`
	DIPlus             null.Float `json:"di_plus"`
	DIMinus            null.Float `json:"di_minus"`
	IsStrongTrend      null.Int   `json:"is_strong_trend"`
}

// MetricColumns lists the non-key calculated_metrics columns in the order
// returned by (*MetricRecord).Fields.
var MetricColumns = []string{
	"change_1d_percent", "change_1d_value", "change_1w_percent", "change_1m_percent",
	"change_3m_percent", "change_6m_percent",
	"rs_percentile", "vars_score", "varw_score",
	"atr_14", "atr_percent", "adr_percent", "today_range_percent",
	"volume_50d_avg", "rvol", "is_volume_surge",
	"ema_10", "sma_20", "sma_50", "sma_100", "sma_200",
	"distance_from_ema10_percent", "distance_from_sma50_percent", "distance_from_sma200_percent",
	"is_ma_stacked",
	"atr_extension_from_sma50", "lod_atr_percent", "is_lod_tight",
	"darvas_20d_high", "darvas_20d_low", "darvas_position_percent",
	"is_new_20d_high", "is_new_20d_low",
	"orh_proxy", "is_m30_reclaim",
	"vcp_score", "stage", "stage_detail",
	"universe_up_count", "universe_down_count", "mcclellan_oscillator", "mcclellan_summation",
	"rs_ratio", "rs_momentum",
	"is_green_candle",
	"rsi_14", "rsi_oversold", "rsi_overbought",
	"macd_line", "macd_signal", "macd_histogram", "is_macd_bullish_cross", "is_macd_bearish_cross",
	"bb_upper", "bb_middle", "bb_lower", "bb_bandwidth_percent", "is_bb_squeeze",
	"adx_14", "di_plus", "di_minus", "is_strong_trend",
}

// Fields returns pointers to every non-key field in MetricColumns order.
// The pointers satisfy both driver.Valuer and sql.Scanner.
func (m *MetricRecord) Fields() []any {
	return []any{
		&m.Change1DPercent, &m.Change1DValue, &m.Change1WPercent, &m.Change1MPercent,
		&m.Change3MPercent, &m.Change6MPercent,
		&m.RSPercentile, &m.VARSScore, &m.VARWScore,
		&m.ATR14, &m.ATRPercent, &m.ADRPercent, &m.TodayRangePercent,
		&m.Volume50DAvg, &m.RVOL, &m.IsVolumeSurge,
		&m.EMA10, &m.SMA20, &m.SMA50, &m.SMA100, &m.SMA200,
		&m.DistanceFromEMA10Percent, &m.DistanceFromSMA50Percent, &m.DistanceFromSMA200Percent,
		&m.IsMAStacked,
		&m.ATRExtensionFromSMA50, &m.LoDATRPercent, &m.IsLoDTight,
		&m.Darvas20DHigh, &m.Darvas20DLow, &m.DarvasPositionPercent,
		&m.IsNew20DHigh, &m.IsNew20DLow,
		&m.ORHProxy, &m.IsM30Reclaim,
		&m.VCPScore, &m.Stage, &m.StageDetail,
		&m.UniverseUpCount, &m.UniverseDownCount, &m.McClellanOscillator, &m.McClellanSummation,
		&m.RSRatio, &m.RSMomentum,
		&m.IsGreenCandle,
		&m.RSI14, &m.RSIOversold, &m.RSIOverbought,
		&m.MACDLine, &m.MACDSignal, &m.MACDHistogram, &m.IsMACDBullishCross, &m.IsMACDBearishCross,
		&m.BBUpper, &m.BBMiddle, &m.BBLower, &m.BBBandwidthPercent, &m.IsBBSqueeze,
		&m.ADX14, &m.DIPlus, &m.DIMinus, &m.IsStrongTrend,
	}
}

// ApplyBreadth copies the universe aggregates into the record.
func (m *MetricRecord) ApplyBreadth(b Breadth) {
	m.UniverseUpCount = null.IntFrom(int64(b.UpCount))
	m.UniverseDownCount = null.IntFrom(int64(b.DownCount))
	m.McClellanOscillator = null.FloatFrom(b.McClellanOscillator)
	m.McClellanSummation = null.FloatFrom(b.McClellanSummation)
}

// Breadth holds the cross-sectional aggregates of one trading date.
type Breadth struct {
	Date                time.Time `json:"date"`
	UpCount             int       `json:"universe_up_count"`
	DownCount           int       `json:"universe_down_count"`
	McClellanOscillator float64   `json:"mcclellan_oscillator"`
	McClellanSummation  float64   `json:"mcclellan_summation"`
}
