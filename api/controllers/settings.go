package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/api/middleware"
	"github.com/postpilotapp/postpilot-backend/api/responses"
	"github.com/postpilotapp/postpilot-backend/api/validators"
	"github.com/postpilotapp/postpilot-backend/internal/settings"
	pkgerrors "github.com/postpilotapp/postpilot-backend/pkg/errors"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

type upsertSettingRequest struct {
	LocationID   string `json:"locationId" validate:"required"`
	Enabled      bool   `json:"enabled"`
	Schedule     string `json:"schedule" validate:"required"`
	Frequency    string `json:"frequency" validate:"required,oneof=daily alternate_days weekly test_interval"`
	BusinessName string `json:"businessName"`
	Category     string `json:"category"`
	Keywords     string `json:"keywords"`
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func settingIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "settingId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid setting id")
	}
	return id, nil
}

func SettingsList(svc *settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		rows, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"settings": newSettingViews(rows)})
	}
}

func SettingsGet(svc *settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		settingID, err := settingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		setting, err := svc.GetForUser(r.Context(), userID, settingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSettingView(setting))
	}
}

// SettingsUpsert creates or updates the one setting row per location.
func SettingsUpsert(svc *settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var body upsertSettingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		setting, err := svc.UpsertForLocation(r.Context(), userID, settings.UpsertInput{
			LocationID:   body.LocationID,
			Enabled:      body.Enabled,
			Schedule:     body.Schedule,
			Frequency:    body.Frequency,
			BusinessName: body.BusinessName,
			Category:     body.Category,
			Keywords:     body.Keywords,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSettingView(setting))
	}
}

func SettingsSetEnabled(svc *settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		settingID, err := settingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body setEnabledRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		setting, err := svc.SetEnabled(r.Context(), userID, settingID, *body.Enabled)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSettingView(setting))
	}
}

func SettingsDelete(svc *settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		settingID, err := settingIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), userID, settingID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}
