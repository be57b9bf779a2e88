package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/postpilotapp/postpilot-backend/internal/runs"
	"github.com/postpilotapp/postpilot-backend/internal/settings"
	"github.com/postpilotapp/postpilot-backend/internal/subscriptions"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
	"github.com/postpilotapp/postpilot-backend/pkg/pagination"
)

// Overview is the operator dashboard rollup.
type Overview struct {
	Settings      settings.AggregateCounts `json:"settings"`
	Subscriptions map[string]int64         `json:"subscriptions"`
	RunsLast24h   map[string]int64         `json:"runsLast24h"`
	Duplicates    int                      `json:"duplicateLocations"`
}

// SettingsPage is one page of settings rows plus the next cursor.
type SettingsPage struct {
	Items      []models.AutomationSetting `json:"items"`
	NextCursor string                     `json:"nextCursor,omitempty"`
}

// RunsPage is one page of post run records plus the next cursor.
type RunsPage struct {
	Items      []models.PostRun `json:"items"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// ServiceParams wires the admin reporting service.
type ServiceParams struct {
	Settings      settings.Repository
	Subscriptions subscriptions.Repository
	Runs          runs.Repository
	Logger        *logger.Logger
	Timezone      *time.Location
}

// Service serves read-only operator reporting. All mutation goes through
// the owning domain services, never through here.
type Service struct {
	settings settings.Repository
	subs     subscriptions.Repository
	runs     runs.Repository
	logg     *logger.Logger
	loc      *time.Location
}

// NewService validates dependencies and builds the service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Settings == nil {
		return nil, fmt.Errorf("admin: settings repository is required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("admin: subscriptions repository is required")
	}
	if params.Runs == nil {
		return nil, fmt.Errorf("admin: runs repository is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("admin: logger is required")
	}
	if params.Timezone == nil {
		params.Timezone = time.UTC
	}
	return &Service{
		settings: params.Settings,
		subs:     params.Subscriptions,
		runs:     params.Runs,
		logg:     params.Logger,
		loc:      params.Timezone,
	}, nil
}

// Overview aggregates platform state for the dashboard.
func (s *Service) Overview(ctx context.Context, now time.Time) (*Overview, error) {
	localNow := now.In(s.loc)
	startOfToday := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, s.loc)

	settingCounts, err := s.settings.Counts(ctx, startOfToday)
	if err != nil {
		return nil, fmt.Errorf("aggregating settings: %w", err)
	}
	subCounts, err := s.subs.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregating subscriptions: %w", err)
	}
	runCounts, err := s.runs.CountByStatusSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("aggregating runs: %w", err)
	}
	duplicates, err := s.settings.ListDuplicateGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing duplicates: %w", err)
	}

	return &Overview{
		Settings:      settingCounts,
		Subscriptions: subCounts,
		RunsLast24h:   runCounts,
		Duplicates:    len(duplicates),
	}, nil
}

// ListSettings returns a cursor page over all settings rows.
func (s *Service) ListSettings(ctx context.Context, cursor string, limit int) (*SettingsPage, error) {
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decoding cursor: %w", err)
	}

	normalized := pagination.NormalizeLimit(limit)
	rows, err := s.settings.ListPage(ctx, decoded, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, fmt.Errorf("listing settings page: %w", err)
	}

	page := &SettingsPage{Items: rows}
	if len(rows) > normalized {
		page.Items = rows[:normalized]
		last := page.Items[normalized-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// ListRuns returns a cursor page over post run records.
func (s *Service) ListRuns(ctx context.Context, cursor string, limit int) (*RunsPage, error) {
	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decoding cursor: %w", err)
	}

	normalized := pagination.NormalizeLimit(limit)
	rows, err := s.runs.ListPage(ctx, decoded, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, fmt.Errorf("listing runs page: %w", err)
	}

	page := &RunsPage{Items: rows}
	if len(rows) > normalized {
		page.Items = rows[:normalized]
		last := page.Items[normalized-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// DuplicateReport lists locations with more than one settings row, with
// the offending rows attached for review.
func (s *Service) DuplicateReport(ctx context.Context) (map[string][]models.AutomationSetting, error) {
	groups, err := s.settings.ListDuplicateGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing duplicate groups: %w", err)
	}
	if len(groups) == 0 {
		return map[string][]models.AutomationSetting{}, nil
	}

	locationIDs := make([]string, 0, len(groups))
	for _, group := range groups {
		locationIDs = append(locationIDs, group.LocationID)
	}
	rows, err := s.settings.ListByLocationIDs(ctx, locationIDs)
	if err != nil {
		return nil, fmt.Errorf("loading duplicate rows: %w", err)
	}

	report := make(map[string][]models.AutomationSetting, len(groups))
	for _, row := range rows {
		report[row.LocationID] = append(report[row.LocationID], row)
	}
	return report, nil
}
