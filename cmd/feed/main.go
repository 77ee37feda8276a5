package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ForexFeed/internal/api"
	"ForexFeed/internal/collector"
	"ForexFeed/internal/config"
	"ForexFeed/internal/logging"
	"ForexFeed/internal/metrics"
	"ForexFeed/internal/notifier"
	"ForexFeed/internal/quota"
	"ForexFeed/internal/recorder"
	"ForexFeed/internal/scheduler"

	"go.uber.org/zap"
)

func main() {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	flag.StringVar(&cfgPath, "config", cfgPath, "path to the YAML config")
	once := flag.String("once", "", "fetch PAIR:TIMEFRAME[:COUNT], print JSON and exit")
	demo := flag.Bool("demo", false, "serve synthetic data only")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *demo {
		cfg.Provider.DemoMode = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log)
	defer logger.Sync()

	if *once != "" {
		os.Exit(runOnce(cfg, logger, *once))
	}
	if err := run(cfg, logger); err != nil {
		logger.Fatal("forexfeed stopped", zap.Error(err))
	}
}

// runOnce serves a single request without the recorder or any background task.
func runOnce(cfg *config.Config, logger *zap.Logger, target string) int {
	w, err := config.ParseWatch(target)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	counter := quota.NewCounter()
	col, err := collector.NewFromConfig(cfg, counter, collector.WithLogger(logger))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	restoreQuota(cfg, counter, logger)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	series, err := col.Fetch(ctx, string(w.Pair), string(w.Timeframe), w.Count, cfg.Provider.DemoMode)
	saveQuota(cfg, counter, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(series); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("forexfeed starting", zap.Bool("demo_mode", cfg.Provider.DemoMode))

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	prom := metrics.NewPrometheus()
	counter := quota.NewCounter()
	col, err := collector.NewFromConfig(cfg, counter,
		collector.WithLogger(logger),
		collector.WithMetrics(prom.Metrics),
		collector.WithRecorder(rec))
	if err != nil {
		return fmt.Errorf("init collector: %w", err)
	}
	restoreQuota(cfg, counter, logger)
	defer saveQuota(cfg, counter, logger)

	for _, st := range col.Status() {
		logger.Info("data source",
			zap.String("name", st.Descriptor.Name),
			zap.Int("priority", st.Descriptor.Priority),
			zap.Bool("configured", st.Configured))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var n notifier.Notifier = notifier.Noop{}
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.Enabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
		n = notifier.Retrying{Telegram: tn, MaxRetries: 3}
	}

	watches := cfg.Watches()
	if cfg.Provider.DemoMode {
		// nothing to warm when every answer is synthetic
		watches = nil
	}
	sched := scheduler.NewScheduler(ctx, col, n, rec, watches, logger)
	if err := sched.RegisterAll(cfg.Schedule.WarmupCron, cfg.Schedule.SummaryCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	if _, err := sched.Cron.AddFunc("@every 1m", func() { saveQuota(cfg, counter, logger) }); err != nil {
		return fmt.Errorf("register quota save: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}

	handler := api.NewHandler(col, cfg.Provider.DemoMode, logger)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(handler, prom.Handler(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("forexfeed stopped")
	return nil
}

// restoreQuota carries window usage over from the last run, so daily budgets
// survive restarts and one-shot invocations.
func restoreQuota(cfg *config.Config, counter *quota.Counter, logger *zap.Logger) {
	st, err := quota.LoadState(cfg.Provider.QuotaStateFile)
	if err != nil {
		logger.Warn("load quota state, starting fresh", zap.Error(err))
		return
	}
	counter.Restore(st)
}

func saveQuota(cfg *config.Config, counter *quota.Counter, logger *zap.Logger) {
	if err := quota.SaveState(cfg.Provider.QuotaStateFile, counter.Snapshot()); err != nil {
		logger.Error("save quota state", zap.Error(err))
	}
}
