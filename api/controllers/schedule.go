package controllers

import (
	"net/http"
	"time"

	"github.com/postpilotapp/postpilot-backend/api/middleware"
	"github.com/postpilotapp/postpilot-backend/api/responses"
	"github.com/postpilotapp/postpilot-backend/api/validators"
	"github.com/postpilotapp/postpilot-backend/internal/schedule"
	"github.com/postpilotapp/postpilot-backend/internal/settings"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

const maxPreviewWindow = 24 * time.Hour

// SchedulePreview lists the caller's locations due inside the look-ahead
// window. Display only; the dispatcher decides independently.
func SchedulePreview(svc *settings.Service, evaluator *schedule.Evaluator, window time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		effective := window
		if minutes := validators.QueryInt(r, "windowMinutes", 0); minutes > 0 {
			effective = time.Duration(minutes) * time.Minute
		}
		if effective <= 0 || effective > maxPreviewWindow {
			effective = window
		}

		rows, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		upcoming := evaluator.Preview(rows, time.Now(), effective)
		responses.WriteSuccess(w, map[string]any{
			"windowMinutes": int(effective.Minutes()),
			"upcoming":      upcoming,
		})
	}
}
