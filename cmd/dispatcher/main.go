package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/postpilotapp/postpilot-backend/internal/dispatch"
	"github.com/postpilotapp/postpilot-backend/internal/gbp"
	"github.com/postpilotapp/postpilot-backend/internal/runs"
	"github.com/postpilotapp/postpilot-backend/internal/schedule"
	"github.com/postpilotapp/postpilot-backend/internal/settings"
	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/internal/tokens"
	"github.com/postpilotapp/postpilot-backend/pkg/config"
	"github.com/postpilotapp/postpilot-backend/pkg/db"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
	"github.com/postpilotapp/postpilot-backend/pkg/metrics"
	"github.com/postpilotapp/postpilot-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "dispatcher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "dispatcher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	evaluator, err := schedule.NewEvaluator(cfg.Scheduler.Timezone)
	if err != nil {
		logg.Error(context.Background(), "failed to create schedule evaluator", err)
		os.Exit(1)
	}

	subsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:      subscriptions.NewRepository(dbClient.DB()),
		Logger:    logg,
		TrialDays: cfg.Scheduler.TrialDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscriptions service", err)
		os.Exit(1)
	}

	tokensService, err := tokens.NewService(tokens.ServiceParams{
		Repo:   tokens.NewRepository(dbClient.DB()),
		Logger: logg,
		Google: cfg.Google,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create tokens service", err)
		os.Exit(1)
	}

	gbpClient, err := gbp.NewClient(gbp.ClientParams{
		BaseURL: cfg.Google.BusinessAPIBase,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create posting client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	dispatcherMetrics := metrics.NewDispatcherMetrics(registry)

	dispatcher, err := dispatch.NewService(dispatch.ServiceParams{
		Settings:     settings.NewRepository(dbClient.DB()),
		Runs:         runs.NewRepository(dbClient.DB()),
		Tokens:       tokensService,
		Poster:       gbpClient,
		Access:       subsService,
		Locker:       redisClient,
		Evaluator:    evaluator,
		Guard:        dispatch.NewGuard(cfg.Scheduler.DedupeTTL),
		Metrics:      dispatcherMetrics,
		Logger:       logg,
		PollInterval: cfg.Scheduler.PollInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatcher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.MetricsPort,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped unexpectedly", err)
		}
	}()
	defer func() {
		timeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(timeout); err != nil {
			logg.Error(context.Background(), "metrics server shutdown", err)
		}
	}()

	startCtx := logg.WithFields(ctx, map[string]any{
		"env":           cfg.App.Env,
		"poll_interval": cfg.Scheduler.PollInterval.String(),
		"timezone":      cfg.Scheduler.Timezone,
	})
	logg.Info(startCtx, "starting dispatcher")

	if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "dispatcher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "dispatcher shut down")
}
