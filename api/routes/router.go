package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/postpilotapp/postpilot-backend/api/controllers"
	"github.com/postpilotapp/postpilot-backend/api/middleware"
	"github.com/postpilotapp/postpilot-backend/internal/admin"
	authsvc "github.com/postpilotapp/postpilot-backend/internal/auth"
	"github.com/postpilotapp/postpilot-backend/internal/dispatch"
	"github.com/postpilotapp/postpilot-backend/internal/schedule"
	"github.com/postpilotapp/postpilot-backend/internal/settings"
	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/internal/tokens"
	razorpaywh "github.com/postpilotapp/postpilot-backend/internal/webhooks/razorpay"
	"github.com/postpilotapp/postpilot-backend/pkg/auth/session"
	"github.com/postpilotapp/postpilot-backend/pkg/config"
	"github.com/postpilotapp/postpilot-backend/pkg/db"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
	"github.com/postpilotapp/postpilot-backend/pkg/redis"
)

// RouterParams wires every dependency the HTTP surface needs.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Sessions session.AccessSessionChecker

	Auth          *authsvc.Service
	Settings      *settings.Service
	Subscriptions *subscriptions.Service
	Tokens        *tokens.Service
	Admin         *admin.Service
	Evaluator     *schedule.Evaluator
	Webhook       *razorpaywh.Processor
}

// NewRouter assembles the chi router with middleware and all route groups.
func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(p.DB, p.Redis, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", controllers.RazorpayWebhook(p.Webhook, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
	})

	// Google redirects the user here without our bearer token; the stored
	// state is what ties the request back to an account.
	r.Get("/api/v1/integrations/google/callback", controllers.GoogleCallback(p.Tokens, p.Redis, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))

		r.Post("/auth/logout", controllers.AuthLogout(p.Auth, logg))
		r.Get("/subscription", controllers.SubscriptionStatus(p.Subscriptions, logg))

		r.Route("/integrations/google", func(r chi.Router) {
			r.Get("/", controllers.GoogleStatus(p.Tokens, logg))
			r.Get("/connect", controllers.GoogleConnect(p.Tokens, p.Redis, logg))
			r.Delete("/", controllers.GoogleDisconnect(p.Tokens, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.SubscriptionGate(p.Subscriptions, logg))

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", controllers.SettingsList(p.Settings, logg))
				r.Put("/", controllers.SettingsUpsert(p.Settings, logg))
				r.Get("/{settingId}", controllers.SettingsGet(p.Settings, logg))
				r.Patch("/{settingId}/enabled", controllers.SettingsSetEnabled(p.Settings, logg))
				r.Delete("/{settingId}", controllers.SettingsDelete(p.Settings, logg))
			})

			r.Get("/schedule/preview", controllers.SchedulePreview(p.Settings, p.Evaluator, cfg.Scheduler.LookAheadWindow, logg))
		})

		if !cfg.App.IsProd() {
			r.Post("/debug/dispatch-reload", controllers.DebugDispatchReload(p.Redis, dispatch.ReloadFlag, logg))
		}
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Get("/overview", controllers.AdminOverview(p.Admin, logg))
		r.Get("/settings", controllers.AdminSettings(p.Admin, logg))
		r.Get("/runs", controllers.AdminRuns(p.Admin, logg))
		r.Get("/duplicates", controllers.AdminDuplicates(p.Admin, logg))
		r.Post("/subscriptions/{userId}/override", controllers.AdminSubscriptionOverride(p.Subscriptions, logg))
	})

	return r
}
