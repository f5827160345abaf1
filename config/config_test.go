package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nse-metrics/internal/indicator"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "data/metrics.db", cfg.SQLitePath)
	assert.Empty(t, cfg.RedisAddr, "redis cache is opt-in")
	assert.Equal(t, 250, cfg.LookbackDays)
	assert.Equal(t, 200, cfg.MinHistory)
	assert.Equal(t, "NIFTY 50", cfg.BenchmarkSymbol)
	assert.Equal(t, "yesterday", cfg.TargetDateMode)
	require.NoError(t, cfg.Validate())

	opts := cfg.CalcOptions()
	assert.Equal(t, indicator.Simple, opts.Smoothing)
	assert.Equal(t, 200, opts.MinHistory)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@localhost/nse")
	t.Setenv("WORKERS", "8")
	t.Setenv("SMOOTHING", "wilder")
	t.Setenv("SCHEDULE_AT", "18:45")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 0, cfg.RedisDB, "invalid integers fall back")
	assert.Equal(t, indicator.Wilder, cfg.CalcOptions().Smoothing)
	assert.Equal(t, "postgres://u:p@localhost/nse", cfg.Store().PostgresDSN)
}

func TestValidate(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	cfg := Load()
	cfg.DBDriver = "postgres"
	cfg.Smoothing = "ema"
	cfg.TargetDateMode = "tomorrow"
	cfg.ScheduleAt = "6pm"
	cfg.TelegramBotToken = "token"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"POSTGRES_DSN", "SMOOTHING", "TARGET_DATE_MODE", "SCHEDULE_AT", "TELEGRAM_CHAT_ID"} {
		assert.Contains(t, err.Error(), want)
	}

	cfg = Load()
	cfg.DBDriver = "mysql"
	assert.ErrorContains(t, cfg.Validate(), "DB_DRIVER")
}

func TestValidateHistoryFloor(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	t.Setenv("MIN_HISTORY", "50")
	cfg := Load()
	assert.ErrorContains(t, cfg.Validate(), "MIN_HISTORY 50")

	t.Setenv("MIN_HISTORY", "220")
	t.Setenv("LOOKBACK_DAYS", "210")
	cfg = Load()
	assert.ErrorContains(t, cfg.Validate(), "LOOKBACK_DAYS 210")

	t.Setenv("LOOKBACK_DAYS", "300")
	cfg = Load()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 220, cfg.CalcOptions().MinHistory)
}

func TestLoadDotenvOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("BENCHMARK_SYMBOL=NIFTY BANK\nLOOKBACK_DAYS=300\n"), 0o600))

	t.Setenv("ENV_FILE", path)
	t.Setenv("LOOKBACK_DAYS", "260")  // already set: the file must not win
	t.Setenv("BENCHMARK_SYMBOL", "") // registered for cleanup; empty counts as unset
	os.Unsetenv("BENCHMARK_SYMBOL")
	dotenvOnce = sync.Once{}
	t.Cleanup(func() { dotenvOnce = sync.Once{} })

	cfg := Load()
	assert.Equal(t, "NIFTY BANK", cfg.BenchmarkSymbol)
	assert.Equal(t, 260, cfg.LookbackDays)
}
