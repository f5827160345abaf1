package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nse-metrics/internal/model"
)

// upsertSQL inserts a full record or overwrites every non-key column of
// the existing (symbol, date) row.
func upsertSQL() string {
	cols := model.MetricColumns
	set := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		set = append(set, c+" = excluded."+c)
	}
	set = append(set, "updated_at = CURRENT_TIMESTAMP")
	return fmt.Sprintf(`
		INSERT INTO calculated_metrics (symbol, date, %s)
		VALUES (%s)
		ON CONFLICT (symbol, date) DO UPDATE SET %s`,
		strings.Join(cols, ", "),
		placeholders(len(cols)+2),
		strings.Join(set, ", "),
	)
}

// UpsertMetrics writes records for date in a single transaction. A failure
// rolls back every row of the batch.
func (s *Store) UpsertMetrics(ctx context.Context, records []*model.MetricRecord, date time.Time) (inserted, updated int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}
	start := time.Now()
	day := s.dialect.dateArg(date)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	existing, err := s.existingSymbols(ctx, tx, day)
	if err != nil {
		return 0, 0, err
	}

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(upsertSQL()))
	if err != nil {
		return 0, 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		args := append([]any{r.Symbol, day}, r.Fields()...)
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return 0, 0, fmt.Errorf("upsert %s: %w", r.Symbol, err)
		}
		if existing[r.Symbol] {
			updated++
		} else {
			inserted++
			existing[r.Symbol] = true
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	slog.Info("[sqldb] committed metrics",
		"date", model.FormatDate(date),
		"inserted", inserted,
		"updated", updated,
		"took", time.Since(start).String(),
	)
	return inserted, updated, nil
}

func (s *Store) existingSymbols(ctx context.Context, tx *sql.Tx, day any) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, s.dialect.rebind(`SELECT symbol FROM calculated_metrics WHERE date = ?`), day)
	if err != nil {
		return nil, fmt.Errorf("query existing metrics: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out[sym] = true
	}
	return out, rows.Err()
}

// SaveSecurities upserts rows of the security master.
func (s *Store) SaveSecurities(ctx context.Context, secs []model.Security) error {
	q := s.dialect.rebind(`
		INSERT INTO securities (symbol, security_name, is_active) VALUES (?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET security_name = excluded.security_name, is_active = excluded.is_active`)
	return s.inTx(ctx, q, len(secs), func(k int) []any {
		return []any{secs[k].Symbol, secs[k].Name, secs[k].IsActive}
	})
}

// SaveBars upserts daily bars into ohlcv_daily.
func (s *Store) SaveBars(ctx context.Context, bars []model.Bar) error {
	return s.saveBars(ctx, "ohlcv_daily", bars)
}

// SaveIndexBars upserts daily index bars into index_ohlcv_daily.
func (s *Store) SaveIndexBars(ctx context.Context, bars []model.Bar) error {
	return s.saveBars(ctx, "index_ohlcv_daily", bars)
}

func (s *Store) saveBars(ctx context.Context, table string, bars []model.Bar) error {
	q := s.dialect.rebind(fmt.Sprintf(`
		INSERT INTO %s (symbol, date, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume`, table))
	return s.inTx(ctx, q, len(bars), func(k int) []any {
		b := bars[k]
		return []any{b.Symbol, s.dialect.dateArg(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume}
	})
}

// inTx executes the prepared statement q n times in one transaction.
func (s *Store) inTx(ctx context.Context, q string, n int, args func(k int) []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for k := 0; k < n; k++ {
		if _, err := stmt.ExecContext(ctx, args(k)...); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
