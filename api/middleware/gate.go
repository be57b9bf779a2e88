package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/api/responses"
	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
	pkgerrors "github.com/postpilotapp/postpilot-backend/pkg/errors"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

// AccessEvaluator derives the caller's subscription entitlement.
type AccessEvaluator interface {
	AccessFor(ctx context.Context, userID uuid.UUID, now time.Time) (subscriptions.Access, *models.Subscription, error)
}

// SubscriptionGate blocks platform features for users without an active
// trial or paid subscription. The backend evaluation here is authoritative;
// whatever the frontend decided is advisory only. Must run after Auth.
func SubscriptionGate(access AccessEvaluator, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Platform operators are never gated.
			if RoleFromContext(ctx) == string(enums.UserRoleAdmin) {
				next.ServeHTTP(w, r)
				return
			}

			userID := UserIDFromContext(ctx)
			if userID == uuid.Nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			derived, _, err := access.AccessFor(ctx, userID, time.Now())
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking subscription"))
				return
			}
			if !derived.CanUsePlatform {
				err := pkgerrors.New(pkgerrors.CodePaymentNeeded, "active subscription required").
					WithDetails(map[string]any{"status": derived.Status.String()})
				responses.WriteError(ctx, logg, w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
