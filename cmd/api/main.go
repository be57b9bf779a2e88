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

	"github.com/postpilotapp/postpilot-backend/api/routes"
	"github.com/postpilotapp/postpilot-backend/internal/admin"
	authsvc "github.com/postpilotapp/postpilot-backend/internal/auth"
	"github.com/postpilotapp/postpilot-backend/internal/runs"
	"github.com/postpilotapp/postpilot-backend/internal/schedule"
	"github.com/postpilotapp/postpilot-backend/internal/settings"
	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/internal/tokens"
	"github.com/postpilotapp/postpilot-backend/internal/users"
	razorpaywh "github.com/postpilotapp/postpilot-backend/internal/webhooks/razorpay"
	"github.com/postpilotapp/postpilot-backend/pkg/auth/session"
	"github.com/postpilotapp/postpilot-backend/pkg/config"
	"github.com/postpilotapp/postpilot-backend/pkg/db"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
	"github.com/postpilotapp/postpilot-backend/pkg/mailer"
	"github.com/postpilotapp/postpilot-backend/pkg/migrate"
	"github.com/postpilotapp/postpilot-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
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

	authService, err := authsvc.NewService(authsvc.ServiceParams{
		Users:         users.NewRepository(dbClient.DB()),
		Subscriptions: subsService,
		Sessions:      sessionManager,
		Logger:        logg,
		Mailer:        mailer.New(cfg.Sendgrid, logg),
		JWT:           cfg.JWT,
		Password:      cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	settingsService, err := settings.NewService(settings.ServiceParams{
		Repo:   settings.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
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

	evaluator, err := schedule.NewEvaluator(cfg.Scheduler.Timezone)
	if err != nil {
		logg.Error(context.Background(), "failed to create schedule evaluator", err)
		os.Exit(1)
	}

	adminService, err := admin.NewService(admin.ServiceParams{
		Settings:      settings.NewRepository(dbClient.DB()),
		Subscriptions: subscriptions.NewRepository(dbClient.DB()),
		Runs:          runs.NewRepository(dbClient.DB()),
		Logger:        logg,
		Timezone:      evaluator.Location(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admin service", err)
		os.Exit(1)
	}

	webhookProcessor, err := razorpaywh.NewProcessor(razorpaywh.ProcessorParams{
		Subscriptions: subsService,
		Store:         redisClient,
		Logger:        logg,
		WebhookSecret: cfg.Razorpay.WebhookSecret,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook processor", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.RouterParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Sessions:      sessionManager,
		Auth:          authService,
		Settings:      settingsService,
		Subscriptions: subsService,
		Tokens:        tokensService,
		Admin:         adminService,
		Evaluator:     evaluator,
		Webhook:       webhookProcessor,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		timeout, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(timeout); err != nil {
			logg.Error(ctx, "api server shutdown", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
