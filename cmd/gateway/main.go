package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"ecosort-gateway/classifier"
	"ecosort-gateway/middleware/auth"
	"ecosort-gateway/middleware/ratelimit"
	"ecosort-gateway/middleware/ratelimit/domain"
	"ecosort-gateway/middleware/ratelimit/infra"
	"ecosort-gateway/monitoring"
	"ecosort-gateway/pipeline"
	"ecosort-gateway/server"
	"ecosort-gateway/validation"
)

func main() {
	if err := loadEnvFile(getenvDefault("ENV_FILE", ".env")); err != nil {
		slog.Error("env file error", "error", err)
		os.Exit(1)
	}

	cfg, err := readConfig()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stderr, cfg.logLevel, cfg.logFormat)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}

// limiter é o que o gateway precisa de um limiter: decidir e limpar chaves ociosas.
type limiter interface {
	domain.Limiter
	StartJanitor(ctx infra.DoneContext)
}

func newLimiter(cfg config) limiter {
	if cfg.rateAlgorithm == algorithmTokenBucket {
		return infra.NewStorePerWindow(cfg.ratePerMinute, cfg.rateWindow,
			infra.WithIdleTTL(cfg.rateIdleTTL),
			infra.WithCleanupEvery(cfg.rateCleanupEvery),
		)
	}
	return infra.NewSlidingWindow(cfg.ratePerMinute, cfg.rateWindow,
		infra.WithWindowIdleTTL(cfg.rateIdleTTL),
		infra.WithWindowCleanupEvery(cfg.rateCleanupEvery),
	)
}

func newScorer(cfg config, logger *slog.Logger) (*classifier.Scorer, error) {
	opts := []classifier.Option{classifier.WithLogger(logger)}
	if cfg.keywordsFile != "" {
		table, err := classifier.LoadKeywords(cfg.keywordsFile)
		if err != nil {
			return nil, fmt.Errorf("invalid KEYWORDS_FILE: %w", err)
		}
		opts = append(opts, classifier.WithKeywords(table))
	}
	if cfg.classifierSeed != 0 {
		opts = append(opts, classifier.WithSeed(cfg.classifierSeed))
	}
	return classifier.NewScorer(opts...), nil
}

// newStats devolve o store de admissão e a função que alimenta /metrics.
// O close fecha o cliente Redis, quando houver.
func newStats(ctx context.Context, cfg config) (domain.StatsStore, func(context.Context) (any, error), func(), error) {
	if !cfg.rateStatsEnabled {
		mem := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.rateStatsTrackKeys))
		report := func(context.Context) (any, error) { return mem.Snapshot(), nil }
		return mem, report, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.rateStatsRedisAddr,
		Password: cfg.rateStatsRedisPassword,
		DB:       cfg.rateStatsRedisDB,
	})
	closeFn := func() { _ = rdb.Close() }

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		closeFn()
		return nil, nil, nil, fmt.Errorf("redis stats ping: %w", err)
	}

	store := infra.NewRedisStatsStore(rdb,
		infra.WithStatsPrefix(cfg.rateStatsPrefix),
		infra.WithStatsTTL(cfg.rateStatsTTL),
		infra.WithStatsBucket(cfg.rateStatsBucket),
		infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
	)
	report := func(ctx context.Context) (any, error) {
		total, err := store.Totals(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"total": total}, nil
	}
	return store, report, closeFn, nil
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	scorer, err := newScorer(cfg, logger)
	if err != nil {
		return err
	}
	validator := validation.New(
		validation.WithAllowedExtensions(cfg.allowedExtensions...),
		validation.WithMaxFileSize(cfg.maxFileSize()),
	)

	stats, admissionReport, closeStats, err := newStats(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStats()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	probe := monitoring.NewHostProbe(cfg.diskPath)
	metrics := monitoring.NewAggregator(
		monitoring.WithProbe(probe),
		monitoring.WithRegisterer(registry),
		monitoring.WithLogger(logger),
	)

	gate := auth.NewGate(cfg.apiKey)
	if !gate.Enabled() && cfg.production() {
		logger.Warn("API_KEY not set in production: authentication disabled")
	}

	deps := pipeline.Deps{
		Gate:       gate,
		RetryAfter: cfg.retryAfter,
		Stats:      stats,
		Validator:  validator,
		Scorer:     scorer,
		Metrics:    metrics,
		Logger:     logger,
	}
	var lim limiter
	if cfg.rateEnabled {
		lim = newLimiter(cfg)
		lim.StartJanitor(ctx)
		deps.Limiter = lim
	}

	opts := server.Options{
		Info: server.Info{
			Environment:        cfg.appEnv,
			APIKeyEnabled:      gate.Enabled(),
			RateLimitEnabled:   cfg.rateEnabled,
			RateLimitPerMinute: cfg.ratePerMinute,
			MetricsEnabled:     cfg.enableMetrics,
			MaxFileSize:        cfg.maxFileSize(),
		},
		Pipeline:            pipeline.Build(deps),
		Metrics:             metrics,
		Health:              monitoring.NewHealthChecker(probe, metrics),
		Alerts:              monitoring.NewAlertManager(monitoring.WithAlertLogger(logger)),
		AddRateLimitHeaders: cfg.addHeaders,
		KeyFunc:             ratelimit.DefaultKeyFunc(cfg.rateKeyHeader, cfg.trustXFF),
		AdmissionReport:     admissionReport,
		Prometheus:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.concurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.concurrencyTimeout,
		},
		Logger: logger,
	}
	if lim != nil {
		opts.Limiter = lim
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           server.New(opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("gateway listening", "addr", cfg.listenAddr, "env", cfg.appEnv)
	logger.Info("rate", "enabled", cfg.rateEnabled, "algorithm", cfg.rateAlgorithm, "limit", cfg.ratePerMinute, "window", cfg.rateWindow, "keyHeader", cfg.rateKeyHeader, "trustXFF", cfg.trustXFF)
	logger.Info("rate-stats", "redis", cfg.rateStatsEnabled, "redisAddr", cfg.rateStatsRedisAddr, "bucket", cfg.rateStatsBucket, "ttl", cfg.rateStatsTTL, "trackKeys", cfg.rateStatsTrackKeys)
	logger.Info("concurrency", "max", cfg.concurrencyMax, "acquireTimeout", cfg.concurrencyTimeout)
	logger.Info("classifier", "keywordsFile", cfg.keywordsFile, "seeded", cfg.classifierSeed != 0, "maxFileSizeMB", cfg.maxFileSizeMB, "extensions", validator.AllowedExtensions())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("gateway stopped")
		return nil
	})
	return g.Wait()
}
