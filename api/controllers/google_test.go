package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/postpilotapp/postpilot-backend/api/middleware"
	"github.com/postpilotapp/postpilot-backend/internal/tokens"
	"github.com/postpilotapp/postpilot-backend/pkg/config"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

type memStateStore struct {
	values map[string]string
}

func newMemStateStore() *memStateStore {
	return &memStateStore{values: map[string]string{}}
}

func (m *memStateStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memStateStore) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redislib.Nil
	}
	return value, nil
}

func (m *memStateStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memStateStore) OAuthStateKey(state string) string {
	return "pp:oauth_state:" + state
}

type fakeTokenRepo struct {
	tokens.Repository
	stored map[uuid.UUID]*models.OAuthToken
}

func (f *fakeTokenRepo) Get(_ context.Context, userID uuid.UUID) (*models.OAuthToken, error) {
	token, ok := f.stored[userID]
	if !ok {
		return nil, tokens.ErrNotFound
	}
	return token, nil
}

func newTokensService(t *testing.T) *tokens.Service {
	t.Helper()
	svc, err := tokens.NewService(tokens.ServiceParams{
		Repo:   &fakeTokenRepo{stored: map[uuid.UUID]*models.OAuthToken{}},
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Google: config.GoogleConfig{
			OAuthClientID:     "client",
			OAuthClientSecret: "secret",
			OAuthRedirectURL:  "https://app.example.com/callback",
		},
	})
	require.NoError(t, err)
	return svc
}

func TestGoogleConnectStoresStateAndReturnsURL(t *testing.T) {
	svc := newTokensService(t)
	states := newMemStateStore()
	userID := uuid.New()

	handler := GoogleConnect(svc, states, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations/google/connect", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payload struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Contains(t, payload.Data.URL, "accounts.google.com")
	require.Contains(t, payload.Data.URL, "access_type=offline")

	require.Len(t, states.values, 1)
	for key, stored := range states.values {
		require.True(t, strings.HasPrefix(key, "pp:oauth_state:"))
		require.Equal(t, userID.String(), stored)
		require.Contains(t, payload.Data.URL, "state="+strings.TrimPrefix(key, "pp:oauth_state:"))
	}
}

func TestGoogleCallbackRejectsUnknownState(t *testing.T) {
	svc := newTokensService(t)
	states := newMemStateStore()

	handler := GoogleCallback(svc, states, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations/google/callback?state=bogus&code=abc", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
}

func TestGoogleCallbackRequiresParams(t *testing.T) {
	svc := newTokensService(t)
	handler := GoogleCallback(svc, newMemStateStore(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations/google/callback", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestGoogleStatusNotConnected(t *testing.T) {
	svc := newTokensService(t)
	handler := GoogleStatus(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/integrations/google", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.New()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Data struct {
			Connected bool `json:"connected"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.False(t, payload.Data.Connected)
}
