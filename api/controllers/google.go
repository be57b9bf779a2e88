package controllers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/postpilotapp/postpilot-backend/api/middleware"
	"github.com/postpilotapp/postpilot-backend/api/responses"
	"github.com/postpilotapp/postpilot-backend/api/validators"
	"github.com/postpilotapp/postpilot-backend/internal/tokens"
	pkgerrors "github.com/postpilotapp/postpilot-backend/pkg/errors"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

const oauthStateTTL = 10 * time.Minute

// OAuthStateStore persists the short-lived state binding a consent redirect
// back to the user who initiated it.
type OAuthStateStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	OAuthStateKey(state string) string
}

func newOAuthState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GoogleConnect returns the consent URL bound to the caller via a state token.
func GoogleConnect(svc *tokens.Service, states OAuthStateStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		state, err := newOAuthState()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "oauth state"))
			return
		}
		if err := states.Set(r.Context(), states.OAuthStateKey(state), userID.String(), oauthStateTTL); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing oauth state"))
			return
		}

		responses.WriteSuccess(w, map[string]string{"url": svc.AuthURL(state)})
	}
}

// GoogleCallback completes the consent flow. Google redirects here without
// our bearer token, so the state lookup is what authenticates the request.
func GoogleCallback(svc *tokens.Service, states OAuthStateStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := validators.QueryString(r, "state")
		code := validators.QueryString(r, "code")
		if state == "" || code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "state and code are required"))
			return
		}

		key := states.OAuthStateKey(state)
		stored, err := states.Get(r.Context(), key)
		if err != nil {
			if errors.Is(err, redislib.Nil) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown or expired oauth state"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading oauth state"))
			return
		}
		// One shot: a replayed redirect must not exchange the code twice.
		if err := states.Del(r.Context(), key); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing oauth state"))
			return
		}

		userID, err := uuid.Parse(stored)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "corrupt oauth state"))
			return
		}

		if err := svc.Exchange(r.Context(), userID, code); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"connected": true})
	}
}

func GoogleStatus(svc *tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		connected, token, err := svc.Connected(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := map[string]any{"connected": connected}
		if connected {
			payload["expiresAt"] = token.ExpiresAt
		}
		responses.WriteSuccess(w, payload)
	}
}

func GoogleDisconnect(svc *tokens.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		if err := svc.Disconnect(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"disconnected": true})
	}
}
