package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"nse-metrics/internal/calc"
	"nse-metrics/internal/indicator"
	"nse-metrics/internal/markethours"
	"nse-metrics/internal/store/sqldb"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Storage
	DBDriver    string
	SQLitePath  string
	PostgresDSN string

	// Run cache; empty RedisAddr disables it
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Listeners
	MetricsAddr string
	HTTPAddr    string

	// Alerts
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string
	AlertsPerMinute  int

	// Calculation
	Workers         int
	LookbackDays    int
	MinHistory      int
	BenchmarkSymbol string
	Smoothing       string

	// Scheduling
	TargetDateMode string
	ScheduleAt     string // HH:MM IST; empty disables the daily run

	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults, after loading a .env file once.
func Load() *Config {
	LoadDotenvOnce()
	return &Config{
		DBDriver:    getEnv("DB_DRIVER", sqldb.DriverSQLite),
		SQLitePath:  getEnv("SQLITE_PATH", "data/metrics.db"),
		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		AlertsPerMinute:  getInt("ALERTS_PER_MINUTE", 20),

		Workers:         getInt("WORKERS", 0),
		LookbackDays:    getInt("LOOKBACK_DAYS", 250),
		MinHistory:      getInt("MIN_HISTORY", 200),
		BenchmarkSymbol: getEnv("BENCHMARK_SYMBOL", "NIFTY 50"),
		Smoothing:       getEnv("SMOOTHING", string(indicator.Simple)),

		TargetDateMode: getEnv("TARGET_DATE_MODE", string(markethours.Yesterday)),
		ScheduleAt:     getEnv("SCHEDULE_AT", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks enumerated and dependent settings.
func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case sqldb.DriverSQLite:
	case sqldb.DriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required when DB_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q: want sqlite or postgres", c.DBDriver))
	}
	if _, err := indicator.ParseSmoothing(c.Smoothing); err != nil {
		errs = append(errs, fmt.Errorf("SMOOTHING: %w", err))
	}
	if _, err := markethours.ParseTargetMode(c.TargetDateMode); err != nil {
		errs = append(errs, fmt.Errorf("TARGET_DATE_MODE: %w", err))
	}
	if c.ScheduleAt != "" {
		if _, err := markethours.ParseClock(c.ScheduleAt); err != nil {
			errs = append(errs, fmt.Errorf("SCHEDULE_AT: %w", err))
		}
	}
	if c.MinHistory < calc.RequiredHistory {
		errs = append(errs, fmt.Errorf("MIN_HISTORY %d: must be at least %d", c.MinHistory, calc.RequiredHistory))
	}
	if c.LookbackDays < c.MinHistory {
		errs = append(errs, fmt.Errorf("LOOKBACK_DAYS %d: must be at least MIN_HISTORY (%d)", c.LookbackDays, c.MinHistory))
	}
	if (c.TelegramBotToken == "") != (c.TelegramChatID == "") {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together"))
	}
	return errors.Join(errs...)
}

// CalcOptions maps the calculation settings onto calc.Options. Call
// Validate first.
func (c *Config) CalcOptions() calc.Options {
	smoothing, _ := indicator.ParseSmoothing(c.Smoothing)
	return calc.Options{
		MinHistory:      c.MinHistory,
		LookbackDays:    c.LookbackDays,
		Smoothing:       smoothing,
		BenchmarkSymbol: c.BenchmarkSymbol,
		Workers:         c.Workers,
	}
}

// Store returns the sqldb connection settings.
func (c *Config) Store() sqldb.Config {
	return sqldb.Config{Driver: c.DBDriver, SQLitePath: c.SQLitePath, PostgresDSN: c.PostgresDSN}
}

var dotenvOnce sync.Once

// LoadDotenvOnce loads .env (or $ENV_FILE) without overriding variables
// already set in the environment. NO_DOTENV=1 skips it; DOTENV_OVERLOAD=1
// lets the file win.
func LoadDotenvOnce() {
	dotenvOnce.Do(func() {
		if os.Getenv("NO_DOTENV") == "1" {
			return
		}
		path := getEnv("ENV_FILE", ".env")
		if _, err := os.Stat(path); err != nil {
			return
		}
		load := godotenv.Load
		if os.Getenv("DOTENV_OVERLOAD") == "1" {
			load = godotenv.Overload
		}
		if err := load(path); err != nil {
			slog.Warn("[config] failed to load env file", "path", path, "error", err)
		}
	})
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("[config] invalid integer, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}
