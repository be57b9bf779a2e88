package dispatch

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilotapp/postpilot-backend/internal/gbp"
	"github.com/postpilotapp/postpilot-backend/internal/runs"
	"github.com/postpilotapp/postpilot-backend/internal/schedule"
	"github.com/postpilotapp/postpilot-backend/internal/settings"
	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
	apperrors "github.com/postpilotapp/postpilot-backend/pkg/errors"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

type fakeSettings struct {
	settings.Repository
	enabled  []models.AutomationSetting
	lastRuns map[uuid.UUID]time.Time
}

func (f *fakeSettings) ListEnabled(context.Context) ([]models.AutomationSetting, error) {
	return f.enabled, nil
}

func (f *fakeSettings) UpdateLastRun(_ context.Context, id uuid.UUID, ranAt time.Time) error {
	if f.lastRuns == nil {
		f.lastRuns = map[uuid.UUID]time.Time{}
	}
	f.lastRuns[id] = ranAt
	return nil
}

type fakeRuns struct {
	runs.Repository
	created []*models.PostRun
}

func (f *fakeRuns) Create(_ context.Context, run *models.PostRun) error {
	f.created = append(f.created, run)
	return nil
}

type fakeTokens struct {
	err      error
	cleanups int
}

func (f *fakeTokens) HTTPClientFor(context.Context, uuid.UUID) (*http.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	return http.DefaultClient, nil
}

func (f *fakeTokens) CleanupStale(context.Context, time.Time, time.Duration) (int64, error) {
	f.cleanups++
	return 0, nil
}

type fakePoster struct {
	err   error
	posts []string
}

func (f *fakePoster) CreatePost(_ context.Context, _ *http.Client, locationID string, _ gbp.LocalPost) (*gbp.CreatedPost, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.posts = append(f.posts, locationID)
	return &gbp.CreatedPost{Name: locationID + "/localPosts/1", State: "LIVE"}, nil
}

type fakeAccess struct {
	denied map[uuid.UUID]bool
}

func (f *fakeAccess) AccessFor(_ context.Context, userID uuid.UUID, _ time.Time) (subscriptions.Access, *models.Subscription, error) {
	if f.denied[userID] {
		return subscriptions.Access{Status: enums.SubscriptionStatusExpired, RequiresPayment: true}, nil, nil
	}
	return subscriptions.Access{Status: enums.SubscriptionStatusActive, CanUsePlatform: true}, nil, nil
}

type fakeLocker struct {
	held map[string]bool
}

func (f *fakeLocker) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLocker) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.held, key)
	}
	return nil
}

func (f *fakeLocker) FlagKey(name string) string { return "pp:flag:" + name }

func (f *fakeLocker) ConsumeFlag(context.Context, string) (bool, error) { return false, nil }

type fixture struct {
	svc      *Service
	settings *fakeSettings
	runs     *fakeRuns
	tokens   *fakeTokens
	poster   *fakePoster
	access   *fakeAccess
	now      time.Time
}

func newFixture(t *testing.T, enabled []models.AutomationSetting) *fixture {
	t.Helper()
	eval, err := schedule.NewEvaluator("Asia/Kolkata")
	require.NoError(t, err)

	f := &fixture{
		settings: &fakeSettings{enabled: enabled},
		runs:     &fakeRuns{},
		tokens:   &fakeTokens{},
		poster:   &fakePoster{},
		access:   &fakeAccess{denied: map[uuid.UUID]bool{}},
		now:      time.Date(2025, time.March, 10, 9, 1, 0, 0, eval.Location()),
	}
	f.svc, err = NewService(ServiceParams{
		Settings:  f.settings,
		Runs:      f.runs,
		Tokens:    f.tokens,
		Poster:    f.poster,
		Access:    f.access,
		Locker:    &fakeLocker{},
		Evaluator: eval,
		Guard:     NewGuard(10 * time.Minute),
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Now:       func() time.Time { return f.now },
	})
	require.NoError(t, err)
	return f
}

func dueSetting(userID uuid.UUID, locationID string) models.AutomationSetting {
	return models.AutomationSetting{
		ID:         uuid.New(),
		LocationID: locationID,
		UserID:     userID,
		Enabled:    true,
		Schedule:   "09:00",
		Frequency:  enums.FrequencyDaily,
	}
}

func TestCyclePostsDueLocations(t *testing.T) {
	userID := uuid.New()
	setting := dueSetting(userID, "locations/1")
	f := newFixture(t, []models.AutomationSetting{setting})

	require.NoError(t, f.svc.Cycle(context.Background()))
	assert.Equal(t, []string{"locations/1"}, f.poster.posts)

	// Success stamps last_run_at and records a success run.
	assert.Equal(t, f.now, f.settings.lastRuns[setting.ID])
	require.Len(t, f.runs.created, 1)
	assert.Equal(t, enums.PostRunStatusSuccess, f.runs.created[0].Status)
}

func TestCycleSkipsNotDue(t *testing.T) {
	setting := dueSetting(uuid.New(), "locations/1")
	setting.Schedule = "22:00"
	f := newFixture(t, []models.AutomationSetting{setting})

	require.NoError(t, f.svc.Cycle(context.Background()))
	assert.Empty(t, f.poster.posts)
	assert.Empty(t, f.runs.created)
}

func TestCycleSkipsGatedUsers(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, []models.AutomationSetting{dueSetting(userID, "locations/1")})
	f.access.denied[userID] = true

	require.NoError(t, f.svc.Cycle(context.Background()))
	assert.Empty(t, f.poster.posts)
	// A gated skip is not a failure; nothing is recorded.
	assert.Empty(t, f.runs.created)
}

func TestCycleGuardBlocksRepeatWithinTTL(t *testing.T) {
	setting := dueSetting(uuid.New(), "locations/1")
	setting.Frequency = enums.FrequencyTestInterval
	f := newFixture(t, []models.AutomationSetting{setting})

	require.NoError(t, f.svc.Cycle(context.Background()))
	require.Len(t, f.poster.posts, 1)

	// Next cycle one minute later: due again for test_interval is blocked,
	// and the guard holds regardless.
	f.now = f.now.Add(time.Minute)
	require.NoError(t, f.svc.Cycle(context.Background()))
	assert.Len(t, f.poster.posts, 1)
}

func TestCycleRecordsAuthFailure(t *testing.T) {
	setting := dueSetting(uuid.New(), "locations/1")
	f := newFixture(t, []models.AutomationSetting{setting})
	f.tokens.err = apperrors.New(apperrors.CodeReconnect, "not connected")

	err := f.svc.Cycle(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.settings.lastRuns)
	require.Len(t, f.runs.created, 1)
	assert.Equal(t, enums.PostRunStatusFailed, f.runs.created[0].Status)
	assert.Equal(t, "auth_reconnect_required", f.runs.created[0].ErrorCode)
}

func TestCycleRecordsPostFailureWithoutLastRun(t *testing.T) {
	setting := dueSetting(uuid.New(), "locations/1")
	f := newFixture(t, []models.AutomationSetting{setting})
	f.poster.err = &gbp.APIError{Kind: gbp.FailureRateLimited, StatusCode: 429}

	err := f.svc.Cycle(context.Background())
	require.Error(t, err)

	// last_run_at untouched so the next cycle retries.
	assert.Empty(t, f.settings.lastRuns)
	require.Len(t, f.runs.created, 1)
	assert.Equal(t, "rate_limited", f.runs.created[0].ErrorCode)
}

func TestCycleOneFailureDoesNotBlockOthers(t *testing.T) {
	deniedUser := uuid.New()
	okUser := uuid.New()
	f := newFixture(t, []models.AutomationSetting{
		dueSetting(deniedUser, "locations/1"),
		dueSetting(okUser, "locations/2"),
	})
	f.tokens.err = nil
	f.access.denied[deniedUser] = true

	require.NoError(t, f.svc.Cycle(context.Background()))
	assert.Equal(t, []string{"locations/2"}, f.poster.posts)
}

func TestCycleTokenCleanupOncePerDay(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.svc.Cycle(context.Background()))
	require.NoError(t, f.svc.Cycle(context.Background()))
	assert.Equal(t, 1, f.tokens.cleanups)

	f.now = f.now.Add(24 * time.Hour)
	require.NoError(t, f.svc.Cycle(context.Background()))
	assert.Equal(t, 2, f.tokens.cleanups)
}
