package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"nse-metrics/internal/model"
)

// symbolChunk bounds the IN list of one history query.
const symbolChunk = 500

// ActiveSymbols returns every active symbol of the security master.
func (s *Store) ActiveSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT symbol FROM securities WHERE is_active = ? ORDER BY symbol`), true)
	if err != nil {
		return nil, fmt.Errorf("query securities: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan securities: %w", err)
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// SecurityNames maps every symbol of the security master to its name.
func (s *Store) SecurityNames(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, security_name FROM securities`)
	if err != nil {
		return nil, fmt.Errorf("query security names: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var sym string
		var name sql.NullString
		if err := rows.Scan(&sym, &name); err != nil {
			return nil, fmt.Errorf("scan security names: %w", err)
		}
		out[sym] = name.String
	}
	return out, rows.Err()
}

// LoadHistory bulk-loads daily bars for symbols in [from, to], ascending
// by date per symbol.
func (s *Store) LoadHistory(ctx context.Context, symbols []string, from, to time.Time) (map[string][]model.Bar, error) {
	out := make(map[string][]model.Bar, len(symbols))
	for start := 0; start < len(symbols); start += symbolChunk {
		chunk := symbols[start:min(start+symbolChunk, len(symbols))]
		q := fmt.Sprintf(`
			SELECT symbol, %s, open, high, low, close, volume
			FROM ohlcv_daily
			WHERE date >= ? AND date <= ? AND symbol IN (%s)
			ORDER BY symbol, date`, s.dialect.dateText("date"), placeholders(len(chunk)))

		args := make([]any, 0, len(chunk)+2)
		args = append(args, s.dialect.dateArg(from), s.dialect.dateArg(to))
		for _, sym := range chunk {
			args = append(args, sym)
		}
		if err := s.queryBars(ctx, q, args, func(b model.Bar) {
			out[b.Symbol] = append(out[b.Symbol], b)
		}); err != nil {
			return nil, fmt.Errorf("load ohlcv_daily: %w", err)
		}
	}
	return out, nil
}

// LoadBenchmark loads one index series from index_ohlcv_daily.
func (s *Store) LoadBenchmark(ctx context.Context, index string, from, to time.Time) ([]model.Bar, error) {
	q := fmt.Sprintf(`
		SELECT symbol, %s, open, high, low, close, volume
		FROM index_ohlcv_daily
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date`, s.dialect.dateText("date"))

	var bars []model.Bar
	err := s.queryBars(ctx, q, []any{index, s.dialect.dateArg(from), s.dialect.dateArg(to)}, func(b model.Bar) {
		bars = append(bars, b)
	})
	if err != nil {
		return nil, fmt.Errorf("load index_ohlcv_daily: %w", err)
	}
	return bars, nil
}

func (s *Store) queryBars(ctx context.Context, q string, args []any, fn func(model.Bar)) error {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(q), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var b model.Bar
		var day string
		if err := rows.Scan(&b.Symbol, &day, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return err
		}
		if b.Date, err = model.ParseDate(day); err != nil {
			return fmt.Errorf("bad date %q for %s: %w", day, b.Symbol, err)
		}
		fn(b)
	}
	return rows.Err()
}

// LatestDate returns the most recent date present in calculated_metrics.
func (s *Store) LatestDate(ctx context.Context) (time.Time, bool, error) {
	var day sql.NullString
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM calculated_metrics`, s.dialect.dateText("MAX(date)")),
	).Scan(&day)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query latest metrics date: %w", err)
	}
	if !day.Valid {
		return time.Time{}, false, nil
	}
	t, err := model.ParseDate(day.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// MetricsForDate returns every record of date ordered by symbol.
func (s *Store) MetricsForDate(ctx context.Context, date time.Time) ([]*model.MetricRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM calculated_metrics WHERE date = ? ORDER BY symbol`, s.selectList())
	return s.queryMetrics(ctx, q, s.dialect.dateArg(date))
}

// LatestMetrics returns up to limit records of symbol, newest first.
func (s *Store) LatestMetrics(ctx context.Context, symbol string, limit int) ([]*model.MetricRecord, error) {
	if limit <= 0 {
		limit = 1
	}
	q := fmt.Sprintf(`SELECT %s FROM calculated_metrics WHERE symbol = ? ORDER BY date DESC LIMIT ?`, s.selectList())
	return s.queryMetrics(ctx, q, symbol, limit)
}

func (s *Store) selectList() string {
	return "symbol, " + s.dialect.dateText("date") + ", " + strings.Join(model.MetricColumns, ", ")
}

func (s *Store) queryMetrics(ctx context.Context, q string, args ...any) ([]*model.MetricRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query calculated_metrics: %w", err)
	}
	defer rows.Close()

	var out []*model.MetricRecord
	for rows.Next() {
		r := &model.MetricRecord{}
		var day string
		dest := append([]any{&r.Symbol, &day}, r.Fields()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan calculated_metrics: %w", err)
		}
		if r.Date, err = model.ParseDate(day); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
