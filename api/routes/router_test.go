package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/postpilotapp/postpilot-backend/internal/admin"
	authsvc "github.com/postpilotapp/postpilot-backend/internal/auth"
	"github.com/postpilotapp/postpilot-backend/internal/runs"
	"github.com/postpilotapp/postpilot-backend/internal/schedule"
	"github.com/postpilotapp/postpilot-backend/internal/settings"
	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/internal/tokens"
	"github.com/postpilotapp/postpilot-backend/internal/users"
	razorpaywh "github.com/postpilotapp/postpilot-backend/internal/webhooks/razorpay"
	pkgAuth "github.com/postpilotapp/postpilot-backend/pkg/auth"
	"github.com/postpilotapp/postpilot-backend/pkg/config"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
	"github.com/postpilotapp/postpilot-backend/pkg/redis"
)

type stubSessions struct{}

func (stubSessions) Generate(context.Context, string) (string, error) { return "refresh", nil }
func (stubSessions) Rotate(context.Context, string, string) (string, string, error) {
	return "access", "refresh", nil
}
func (stubSessions) Revoke(context.Context, string) error             { return nil }
func (stubSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

type stubUsersRepo struct {
	users.Repository
}

func (stubUsersRepo) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, users.ErrNotFound
}

type stubSubsRepo struct {
	subscriptions.Repository
	sub *models.Subscription
}

func (s stubSubsRepo) GetByUserID(context.Context, uuid.UUID) (*models.Subscription, error) {
	if s.sub == nil {
		return nil, subscriptions.ErrNotFound
	}
	return s.sub, nil
}

type stubSettingsRepo struct {
	settings.Repository
}

func (stubSettingsRepo) ListByUserID(context.Context, uuid.UUID) ([]models.AutomationSetting, error) {
	return nil, nil
}

type stubTokensRepo struct {
	tokens.Repository
}

type stubRunsRepo struct {
	runs.Repository
}

type stubIdempotencyStore struct{}

func (stubIdempotencyStore) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	return true, nil
}

func (stubIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "pp:idempotency:" + scope + ":" + id
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "postpilot", ExpirationMinutes: 60},
		Scheduler: config.SchedulerConfig{
			Timezone:        "Asia/Kolkata",
			LookAheadWindow: 2 * time.Hour,
		},
	}
}

func newTestRouter(t *testing.T, sub *models.Subscription) (http.Handler, *config.Config) {
	t.Helper()

	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "test"})

	subsService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:   stubSubsRepo{sub: sub},
		Logger: logg,
	})
	require.NoError(t, err)

	authService, err := authsvc.NewService(authsvc.ServiceParams{
		Users:         stubUsersRepo{},
		Subscriptions: subsService,
		Sessions:      stubSessions{},
		Logger:        logg,
		JWT:           cfg.JWT,
	})
	require.NoError(t, err)

	settingsService, err := settings.NewService(settings.ServiceParams{
		Repo:   stubSettingsRepo{},
		Logger: logg,
	})
	require.NoError(t, err)

	tokensService, err := tokens.NewService(tokens.ServiceParams{
		Repo:   stubTokensRepo{},
		Logger: logg,
		Google: config.GoogleConfig{OAuthClientID: "client", OAuthClientSecret: "secret"},
	})
	require.NoError(t, err)

	adminService, err := admin.NewService(admin.ServiceParams{
		Settings:      stubSettingsRepo{},
		Subscriptions: stubSubsRepo{},
		Runs:          stubRunsRepo{},
		Logger:        logg,
	})
	require.NoError(t, err)

	evaluator, err := schedule.NewEvaluator(cfg.Scheduler.Timezone)
	require.NoError(t, err)

	processor, err := razorpaywh.NewProcessor(razorpaywh.ProcessorParams{
		Subscriptions: subsService,
		Store:         stubIdempotencyStore{},
		Logger:        logg,
		WebhookSecret: "whsec",
	})
	require.NoError(t, err)

	router := NewRouter(RouterParams{
		Config:        cfg,
		Logger:        logg,
		DB:            nil,
		Redis:         (*redis.Client)(nil),
		Sessions:      stubSessions{},
		Auth:          authService,
		Settings:      settingsService,
		Subscriptions: subsService,
		Tokens:        tokensService,
		Admin:         adminService,
		Evaluator:     evaluator,
		Webhook:       processor,
	})
	return router, cfg
}

func bearerFor(t *testing.T, cfg *config.Config, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    uuid.NewString(),
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouterHealthLive(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterSettingsRequireAuth(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterGateBlocksWithoutSubscription(t *testing.T) {
	router, cfg := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	req.Header.Set("Authorization", bearerFor(t, cfg, uuid.New(), enums.UserRoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())
}

func TestRouterGateAllowsLiveTrial(t *testing.T) {
	userID := uuid.New()
	trialEnd := time.Now().Add(7 * 24 * time.Hour)
	router, cfg := newTestRouter(t, &models.Subscription{
		UserID:      userID,
		Status:      enums.SubscriptionStatusTrial,
		TrialEndsAt: &trialEnd,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	req.Header.Set("Authorization", bearerFor(t, cfg, userID, enums.UserRoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRouterAdminRoutesRejectUsers(t *testing.T) {
	router, cfg := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/overview", nil)
	req.Header.Set("Authorization", bearerFor(t, cfg, uuid.New(), enums.UserRoleUser))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterWebhookRejectsBadSignature(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", nil)
	req.Header.Set(razorpaywh.SignatureHeader, "bogus")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
