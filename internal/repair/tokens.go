package repair

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

// staleGrace matches the dispatcher's in-cycle cleanup so a manual run and
// the automated one agree on what is removable.
const staleGrace = 7 * 24 * time.Hour

// TokenPlan describes one credential the op would delete.
type TokenPlan struct {
	UserID    uuid.UUID `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenStore is the slice of the token service this op needs.
type TokenStore interface {
	ListStale(ctx context.Context, now time.Time, grace time.Duration) ([]models.OAuthToken, error)
	CleanupStale(ctx context.Context, now time.Time, grace time.Duration) (int64, error)
}

// ExpiredTokens removes Google credentials that expired without a refresh
// token and can never recover.
type ExpiredTokens struct {
	tokens TokenStore
	logg   *logger.Logger
}

// NewExpiredTokens builds the op.
func NewExpiredTokens(tokens TokenStore, logg *logger.Logger) (*ExpiredTokens, error) {
	if tokens == nil {
		return nil, fmt.Errorf("repair: token store is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("repair: logger is required")
	}
	return &ExpiredTokens{tokens: tokens, logg: logg}, nil
}

// Plan lists the credentials that would be removed.
func (e *ExpiredTokens) Plan(ctx context.Context, now time.Time) ([]TokenPlan, error) {
	stale, err := e.tokens.ListStale(ctx, now, staleGrace)
	if err != nil {
		return nil, fmt.Errorf("listing stale tokens: %w", err)
	}
	plans := make([]TokenPlan, 0, len(stale))
	for _, token := range stale {
		plans = append(plans, TokenPlan{UserID: token.UserID, ExpiresAt: token.ExpiresAt})
	}
	return plans, nil
}

// Apply deletes the stale credentials.
func (e *ExpiredTokens) Apply(ctx context.Context, now time.Time) (int64, error) {
	return e.tokens.CleanupStale(ctx, now, staleGrace)
}
