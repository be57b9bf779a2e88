package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/internal/schedule"
	"github.com/postpilotapp/postpilot-backend/pkg/db"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
	apperrors "github.com/postpilotapp/postpilot-backend/pkg/errors"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

const locationIDConstraint = "automation_settings_location_id_key"

// UpsertInput carries the validated fields for creating or replacing a
// location's automation settings.
type UpsertInput struct {
	LocationID   string
	Enabled      bool
	Schedule     string
	Frequency    string
	BusinessName string
	Category     string
	Keywords     string
}

// ServiceParams wires the settings service dependencies.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service owns automation settings CRUD and its validation rules.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService validates dependencies and builds the service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("settings: repository is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("settings: logger is required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// validate normalizes and checks the input, returning the parsed frequency.
func validate(input *UpsertInput) (enums.Frequency, error) {
	input.LocationID = strings.TrimSpace(input.LocationID)
	if input.LocationID == "" {
		return "", apperrors.New(apperrors.CodeValidation, "locationId is required")
	}
	if _, err := schedule.ParseClock(input.Schedule); err != nil {
		return "", apperrors.Wrap(apperrors.CodeValidation, err, "schedule must be HH:MM")
	}
	frequency, err := enums.ParseFrequency(input.Frequency)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeValidation, err, "unknown frequency")
	}
	return frequency, nil
}

// UpsertForLocation creates the row for a new location or updates the
// caller's existing row. A second row for the same location can never be
// created: the unique constraint backs this up even under concurrent writes.
func (s *Service) UpsertForLocation(ctx context.Context, userID uuid.UUID, input UpsertInput) (*models.AutomationSetting, error) {
	frequency, err := validate(&input)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByLocationID(ctx, input.LocationID)
	switch err {
	case nil:
		if existing.UserID != userID {
			return nil, apperrors.New(apperrors.CodeConflict, "location is managed by another account")
		}
		existing.Enabled = input.Enabled
		existing.Schedule = input.Schedule
		existing.Frequency = frequency
		existing.BusinessName = input.BusinessName
		existing.Category = input.Category
		existing.Keywords = input.Keywords
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("updating settings: %w", err)
		}
		return existing, nil

	case ErrNotFound:
		setting := &models.AutomationSetting{
			LocationID:   input.LocationID,
			UserID:       userID,
			Enabled:      input.Enabled,
			Schedule:     input.Schedule,
			Frequency:    frequency,
			BusinessName: input.BusinessName,
			Category:     input.Category,
			Keywords:     input.Keywords,
		}
		if err := s.repo.Create(ctx, setting); err != nil {
			if db.IsUniqueViolation(err, locationIDConstraint) {
				return nil, apperrors.New(apperrors.CodeConflict, "settings already exist for this location")
			}
			return nil, fmt.Errorf("creating settings: %w", err)
		}
		ctx = s.logg.WithLocationID(ctx, setting.LocationID)
		s.logg.Info(ctx, "automation settings created")
		return setting, nil

	default:
		return nil, err
	}
}

// GetForUser returns one setting owned by the caller.
func (s *Service) GetForUser(ctx context.Context, userID, settingID uuid.UUID) (*models.AutomationSetting, error) {
	setting, err := s.repo.GetByID(ctx, settingID)
	if err == ErrNotFound {
		return nil, apperrors.New(apperrors.CodeNotFound, "settings not found")
	}
	if err != nil {
		return nil, err
	}
	if setting.UserID != userID {
		return nil, apperrors.New(apperrors.CodeNotFound, "settings not found")
	}
	return setting, nil
}

// ListForUser returns all of the caller's settings.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.AutomationSetting, error) {
	return s.repo.ListByUserID(ctx, userID)
}

// SetEnabled toggles automation for one owned location.
func (s *Service) SetEnabled(ctx context.Context, userID, settingID uuid.UUID, enabled bool) (*models.AutomationSetting, error) {
	setting, err := s.GetForUser(ctx, userID, settingID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetEnabled(ctx, setting.ID, enabled); err != nil {
		return nil, fmt.Errorf("toggling settings: %w", err)
	}
	setting.Enabled = enabled
	return setting, nil
}

// Delete removes one owned location's settings.
func (s *Service) Delete(ctx context.Context, userID, settingID uuid.UUID) error {
	setting, err := s.GetForUser(ctx, userID, settingID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, setting.ID); err != nil {
		return fmt.Errorf("deleting settings: %w", err)
	}
	ctx = s.logg.WithLocationID(ctx, setting.LocationID)
	s.logg.Info(ctx, "automation settings deleted")
	return nil
}
