package sqldb

import (
	"context"
	"fmt"
	"strings"

	"github.com/guregu/null/v6"

	"nse-metrics/internal/model"
)

func (s *Store) createSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema(metricColumnDefs(s.dialect)) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// metricColumnDefs derives the calculated_metrics column list from the
// record's field types.
func metricColumnDefs(d dialect) string {
	var probe model.MetricRecord
	defs := make([]string, len(model.MetricColumns))
	for k, f := range probe.Fields() {
		typ := "TEXT"
		switch f.(type) {
		case *null.Float:
			typ = d.floatType()
		case *null.Int:
			typ = d.intType()
		}
		defs[k] = fmt.Sprintf("%s %s", model.MetricColumns[k], typ)
	}
	return strings.Join(defs, ",\n\t\t\t")
}

func (sqliteDialect) schema(metricCols string) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS securities (
			symbol        TEXT    PRIMARY KEY,
			security_name TEXT    NOT NULL DEFAULT '',
			is_active     INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS ohlcv_daily (
			symbol TEXT NOT NULL,
			date   TEXT NOT NULL,
			open   REAL NOT NULL,
			high   REAL NOT NULL,
			low    REAL NOT NULL,
			close  REAL NOT NULL,
			volume INTEGER,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ohlcv_date ON ohlcv_daily (date)`,
		`CREATE TABLE IF NOT EXISTS index_ohlcv_daily (
			symbol TEXT NOT NULL,
			date   TEXT NOT NULL,
			open   REAL NOT NULL,
			high   REAL NOT NULL,
			low    REAL NOT NULL,
			close  REAL NOT NULL,
			volume INTEGER,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE TABLE IF NOT EXISTS calculated_metrics (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			date   TEXT NOT NULL,
			` + metricCols + `,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calculated_metrics_date ON calculated_metrics (date)`,
	}
}

func (postgresDialect) schema(metricCols string) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS securities (
			symbol        VARCHAR(50)  PRIMARY KEY,
			security_name VARCHAR(255) NOT NULL DEFAULT '',
			is_active     BOOLEAN      NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS ohlcv_daily (
			symbol VARCHAR(50)      NOT NULL,
			date   DATE             NOT NULL,
			open   DOUBLE PRECISION NOT NULL,
			high   DOUBLE PRECISION NOT NULL,
			low    DOUBLE PRECISION NOT NULL,
			close  DOUBLE PRECISION NOT NULL,
			volume BIGINT,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ohlcv_date ON ohlcv_daily (date DESC)`,
		`CREATE TABLE IF NOT EXISTS index_ohlcv_daily (
			symbol VARCHAR(50)      NOT NULL,
			date   DATE             NOT NULL,
			open   DOUBLE PRECISION NOT NULL,
			high   DOUBLE PRECISION NOT NULL,
			low    DOUBLE PRECISION NOT NULL,
			close  DOUBLE PRECISION NOT NULL,
			volume BIGINT,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE TABLE IF NOT EXISTS calculated_metrics (
			id     BIGSERIAL   PRIMARY KEY,
			symbol VARCHAR(50) NOT NULL,
			date   DATE        NOT NULL,
			` + metricCols + `,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT uq_calculated_metrics_symbol_date UNIQUE (symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calculated_metrics_date ON calculated_metrics (date DESC)`,
	}
}
