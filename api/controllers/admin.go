package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/api/responses"
	"github.com/postpilotapp/postpilot-backend/api/validators"
	"github.com/postpilotapp/postpilot-backend/internal/admin"
	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
	pkgerrors "github.com/postpilotapp/postpilot-backend/pkg/errors"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

type overrideSubscriptionRequest struct {
	Status string `json:"status" validate:"required,oneof=trial active expired cancelled admin"`
}

func AdminOverview(svc *admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overview, err := svc.Overview(r.Context(), time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, overview)
	}
}

func AdminSettings(svc *admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cursor := validators.QueryString(r, "cursor")
		limit := validators.QueryInt(r, "limit", 0)

		page, err := svc.ListSettings(r.Context(), cursor, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"items":      newSettingViews(page.Items),
			"nextCursor": page.NextCursor,
		})
	}
}

func AdminRuns(svc *admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cursor := validators.QueryString(r, "cursor")
		limit := validators.QueryInt(r, "limit", 0)

		page, err := svc.ListRuns(r.Context(), cursor, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"items":      newRunViews(page.Items),
			"nextCursor": page.NextCursor,
		})
	}
}

// AdminDuplicates reports locations holding more than one settings row.
// Resolution happens through the repair tool, never automatically.
func AdminDuplicates(svc *admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.DuplicateReport(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		grouped := make(map[string][]SettingView, len(report))
		for locationID, rows := range report {
			grouped[locationID] = newSettingViews(rows)
		}
		responses.WriteSuccess(w, map[string]any{
			"locations": grouped,
			"count":     len(grouped),
		})
	}
}

func AdminSubscriptionOverride(svc *subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawUserID := strings.TrimSpace(chi.URLParam(r, "userId"))
		userID, err := uuid.Parse(rawUserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid user id"))
			return
		}

		var body overrideSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseSubscriptionStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		sub, err := svc.AdminOverride(r.Context(), userID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionView(sub))
	}
}
