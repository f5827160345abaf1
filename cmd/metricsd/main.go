// Command metricsd computes the daily technical metrics of the NSE universe.
//
// Without -serve it performs one run and prints the result as JSON; the
// exit status is 1 when the run failed. With -serve it exposes the HTTP API,
// the run-event websocket and /metrics, and runs daily at SCHEDULE_AT.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"nse-metrics/config"
	"nse-metrics/internal/api"
	"nse-metrics/internal/calc"
	"nse-metrics/internal/logger"
	"nse-metrics/internal/markethours"
	"nse-metrics/internal/metrics"
	"nse-metrics/internal/model"
	"nse-metrics/internal/notification"
	"nse-metrics/internal/screener"
	"nse-metrics/internal/store/redis"
	"nse-metrics/internal/store/sqldb"
)

func main() {
	var (
		dateFlag    = flag.String("date", "", "target date YYYY-MM-DD (default per TARGET_DATE_MODE)")
		symbolsFlag = flag.String("symbols", "", "comma-separated symbols (default: all active)")
		serve       = flag.Bool("serve", false, "run the HTTP API and daily scheduler")
	)
	flag.Parse()

	cfg := config.Load()
	logger.Init("metricsd", logger.ParseLevel(cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		fatal("invalid configuration", err)
	}
	mode, _ := markethours.ParseTargetMode(cfg.TargetDateMode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- Storage ----
	if cfg.DBDriver == sqldb.DriverSQLite && cfg.SQLitePath != ":memory:" {
		os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	}
	store, err := sqldb.Open(ctx, cfg.Store())
	if err != nil {
		fatal("open store", err)
	}
	defer store.Close()

	// ---- Metrics & health ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus(cfg.RedisAddr != "")

	// ---- Run sinks ----
	sinks := []model.RunSink{health, notification.NewRunAlerter(buildNotifier(cfg))}

	var runCache *redis.RunCache
	if cfg.RedisAddr != "" {
		client, err := redis.Dial(ctx, redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			slog.Warn("[metricsd] redis unavailable, continuing without run cache", "error", err)
		} else {
			runCache = redis.NewRunCache(client, redis.NewCircuitBreaker(3, 30*time.Second), prom)
			defer runCache.Close()
			sinks = append(sinks, runCache)
		}
	}

	var hub *api.Hub
	if *serve {
		hub = api.NewHub(prom)
		sinks = append(sinks, hub)
	}

	orch := calc.NewOrchestrator(calc.Deps{
		Securities: store,
		History:    store,
		Writer:     store,
		Sinks:      sinks,
		Metrics:    prom,
	}, cfg.CalcOptions())

	if !*serve {
		code := runOnce(ctx, orch, *dateFlag, *symbolsFlag, mode)
		// os.Exit skips deferred calls
		if runCache != nil {
			runCache.Close()
		}
		store.Close()
		os.Exit(code)
	}

	// ---- Server mode ----
	if runCache != nil {
		health.StartLivenessChecker(ctx, store.DB(), runCache.Client(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, store.DB(), nil, 10*time.Second)
	}

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, reg)
	metricsSrv.Start()

	apiCfg := api.Config{
		Calculator: orch,
		Metrics:    store,
		Screeners:  screener.New(store, store),
		Health:     health,
		Hub:        hub,
		TargetMode: mode,
	}
	if runCache != nil {
		apiCfg.Runs = runCache
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(apiCfg).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("[metricsd] api listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[metricsd] api server error", "error", err)
			cancel()
		}
	}()

	if cfg.ScheduleAt != "" {
		at, _ := markethours.ParseClock(cfg.ScheduleAt)
		sched := markethours.NewScheduler(at, func(ctx context.Context, session time.Time) {
			if _, err := orch.TryRun(ctx, calc.RunRequest{TargetDate: session}); err != nil {
				slog.Warn("[metricsd] scheduled run skipped", "session", model.FormatDate(session), "error", err)
			}
		})
		go sched.Start(ctx)
	}

	<-ctx.Done()
	slog.Info("[metricsd] shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	hub.Close()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
}

func runOnce(ctx context.Context, orch *calc.Orchestrator, date, symbols string, mode markethours.TargetMode) int {
	target := markethours.DefaultTargetDate(time.Now(), mode)
	if date != "" {
		d, err := model.ParseDate(date)
		if err != nil {
			slog.Error("[metricsd] -date must be YYYY-MM-DD", "value", date)
			return 2
		}
		target = d
	}

	var list []string
	for _, s := range strings.Split(symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, strings.ToUpper(s))
		}
	}

	res := orch.Run(ctx, calc.RunRequest{TargetDate: target, Symbols: list})
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(res)
	if !res.Success {
		return 1
	}
	return 0
}

func buildNotifier(cfg *config.Config) notification.Notifier {
	notifiers := notification.Multi{notification.NewLogNotifier()}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.WebhookURL,
			notification.WithRateLimit(cfg.AlertsPerMinute)))
	}
	if cfg.TelegramBotToken != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID,
			notification.WithRateLimit(cfg.AlertsPerMinute)))
	}
	return notifiers
}

func fatal(msg string, err error) {
	slog.Error("[metricsd] "+msg, "error", err)
	os.Exit(1)
}
