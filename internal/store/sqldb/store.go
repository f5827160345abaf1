package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	_ "github.com/mattn/go-sqlite3"

	"nse-metrics/internal/model"
)

// Supported DB_DRIVER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and locates the database.
type Config struct {
	Driver      string // sqlite | postgres
	SQLitePath  string // e.g. "data/metrics.db" or ":memory:"
	PostgresDSN string
}

// Store reads OHLCV history and the security master and persists
// calculated metrics. It serves SQLite and PostgreSQL through database/sql.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open connects, applies connection settings for the driver and creates
// the schema when missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var (
		db  *sql.DB
		d   dialect
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite:
		d = sqliteDialect{}
		db, err = sql.Open("sqlite3", sqliteDSN(cfg.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("sqlite open: %w", err)
		}
		// Single writer; also keeps ":memory:" on one connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case DriverPostgres:
		d = postgresDialect{}
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres open: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxIdleTime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	s := &Store{db: db, dialect: d}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s schema: %w", d.name(), err)
	}
	slog.Info("[sqldb] opened database", "driver", d.name())
	return s, nil
}

func sqliteDSN(path string) string {
	if path == "" {
		path = "data/metrics.db"
	}
	if path == ":memory:" {
		return path
	}
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// dialect isolates the SQL differences between the two drivers. Queries
// are written with ? placeholders and rebound per dialect.
type dialect interface {
	name() string
	rebind(query string) string
	// dateArg encodes a day for a bind parameter.
	dateArg(day time.Time) any
	// dateText selects a date column as YYYY-MM-DD text.
	dateText(col string) string
	floatType() string
	intType() string
	schema(metricCols string) []string
}

type sqliteDialect struct{}

func (sqliteDialect) name() string               { return DriverSQLite }
func (sqliteDialect) rebind(q string) string     { return q }
func (sqliteDialect) dateArg(d time.Time) any    { return model.FormatDate(d) }
func (sqliteDialect) dateText(col string) string { return col }
func (sqliteDialect) floatType() string          { return "REAL" }
func (sqliteDialect) intType() string            { return "INTEGER" }

type postgresDialect struct{}

func (postgresDialect) name() string               { return DriverPostgres }
func (postgresDialect) dateArg(d time.Time) any    { return model.Day(d) }
func (postgresDialect) dateText(col string) string { return col + "::text" }
func (postgresDialect) floatType() string          { return "DOUBLE PRECISION" }
func (postgresDialect) intType() string            { return "BIGINT" }

// rebind turns ? placeholders into $1..$n.
func (postgresDialect) rebind(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 16)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// placeholders returns "?, ?, ..., ?" with n marks.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
