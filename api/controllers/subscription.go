package controllers

import (
	"net/http"
	"time"

	"github.com/postpilotapp/postpilot-backend/api/middleware"
	"github.com/postpilotapp/postpilot-backend/api/responses"
	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

// SubscriptionStatus returns the backend gate evaluation for the caller.
// The frontend renders this but never decides access on its own.
func SubscriptionStatus(svc *subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		access, sub, err := svc.AccessFor(r.Context(), userID, time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"access":       access,
			"subscription": newSubscriptionView(sub),
		})
	}
}
