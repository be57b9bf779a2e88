package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/internal/users"
	pkgauth "github.com/postpilotapp/postpilot-backend/pkg/auth"
	"github.com/postpilotapp/postpilot-backend/pkg/auth/session"
	"github.com/postpilotapp/postpilot-backend/pkg/config"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
	apperrors "github.com/postpilotapp/postpilot-backend/pkg/errors"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

type fakeUsers struct {
	byEmail map[string]*models.User
	byID    map[uuid.UUID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byEmail: map[string]*models.User{},
		byID:    map[uuid.UUID]*models.User{},
	}
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, users.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[users.NormalizeEmail(email)]; ok {
		return u, nil
	}
	return nil, users.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	user.Email = users.NormalizeEmail(user.Email)
	if _, exists := f.byEmail[user.Email]; exists {
		return gorm.ErrDuplicatedKey
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUsers) Count(context.Context) (int64, error) { return int64(len(f.byID)), nil }

func (f *fakeUsers) WithTx(*gorm.DB) users.Repository { return f }

type fakeSubRepo struct {
	subscriptions.Repository
	byUser map[uuid.UUID]*models.Subscription
}

func (f *fakeSubRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if sub, ok := f.byUser[userID]; ok {
		return sub, nil
	}
	return nil, subscriptions.ErrNotFound
}

func (f *fakeSubRepo) Create(_ context.Context, sub *models.Subscription) error {
	f.byUser[sub.UserID] = sub
	return nil
}

type fakeSessions struct {
	byAccessID map[string]string
	counter    int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byAccessID: map[string]string{}}
}

func (f *fakeSessions) Generate(_ context.Context, accessID string) (string, error) {
	f.counter++
	token := uuid.NewString()
	f.byAccessID[accessID] = token
	return token, nil
}

func (f *fakeSessions) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := f.byAccessID[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.byAccessID, oldAccessID)
	newAccessID := session.NewAccessID()
	token := uuid.NewString()
	f.byAccessID[newAccessID] = token
	return newAccessID, token, nil
}

func (f *fakeSessions) Revoke(_ context.Context, accessID string) error {
	delete(f.byAccessID, accessID)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "postpilot-test",
		ExpirationMinutes: 15,
	}
}

func newTestService(t *testing.T) (*Service, *fakeUsers, *fakeSessions, *fakeSubRepo) {
	t.Helper()
	usersRepo := newFakeUsers()
	sessions := newFakeSessions()
	subRepo := &fakeSubRepo{byUser: map[uuid.UUID]*models.Subscription{}}
	logg := logger.New(logger.Options{ServiceName: "test"})

	subs, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:      subRepo,
		Logger:    logg,
		TrialDays: 14,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Users:         usersRepo,
		Subscriptions: subs,
		Sessions:      sessions,
		Logger:        logg,
		JWT:           testJWTConfig(),
		Password:      config.PasswordConfig{},
	})
	require.NoError(t, err)
	return svc, usersRepo, sessions, subRepo
}

func TestRegister(t *testing.T) {
	svc, _, _, subRepo := newTestService(t)
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	user, pair, err := svc.Register(context.Background(), "Owner@Example.COM ", "s3cretpass", now)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", user.Email)
	assert.Equal(t, enums.UserRoleUser, user.Role)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	// Registration also provisions the trial row.
	sub, ok := subRepo.byUser[user.ID]
	require.True(t, ok)
	assert.Equal(t, enums.SubscriptionStatusTrial, sub.Status)

	claims, err := pkgauth.ParseAccessTokenAt(testJWTConfig(), pair.AccessToken, now)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	now := time.Now()

	_, _, err := svc.Register(context.Background(), "", "s3cretpass", now)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())

	_, _, err = svc.Register(context.Background(), "a@b.com", "short", now)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.As(err).Code())
}

func TestLogin(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	_, _, err := svc.Register(context.Background(), "owner@example.com", "s3cretpass", now)
	require.NoError(t, err)

	user, pair, err := svc.Login(context.Background(), "owner@example.com", "s3cretpass", now)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", user.Email)
	assert.NotEmpty(t, pair.AccessToken)

	_, _, err = svc.Login(context.Background(), "owner@example.com", "wrongpass", now)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.As(err).Code())

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "s3cretpass", now)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.As(err).Code())
}

func TestRefreshRotatesSession(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	_, pair, err := svc.Register(context.Background(), "owner@example.com", "s3cretpass", now)
	require.NoError(t, err)

	renewed, err := svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken, now.Add(time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, renewed.RefreshToken)

	// The old refresh token is burned.
	_, err = svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken, now.Add(2*time.Minute))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.As(err).Code())
}

func TestRefreshAcceptsExpiredAccessToken(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	_, pair, err := svc.Register(context.Background(), "owner@example.com", "s3cretpass", now)
	require.NoError(t, err)

	// Well past the 15 minute access TTL.
	later := now.Add(2 * time.Hour)
	renewed, err := svc.Refresh(context.Background(), pair.AccessToken, pair.RefreshToken, later)
	require.NoError(t, err)

	claims, err := pkgauth.ParseAccessTokenAt(testJWTConfig(), renewed.AccessToken, later)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)
}

func TestRefreshRejectsForgedToken(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Refresh(context.Background(), "not-a-jwt", "refresh", time.Now())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.As(err).Code())
}

func TestLogout(t *testing.T) {
	svc, _, sessions, _ := newTestService(t)
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	_, pair, err := svc.Register(context.Background(), "owner@example.com", "s3cretpass", now)
	require.NoError(t, err)
	require.Len(t, sessions.byAccessID, 1)

	claims, err := pkgauth.ParseAccessTokenAt(testJWTConfig(), pair.AccessToken, now)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), claims.ID))
	assert.Empty(t, sessions.byAccessID)
}
