package repair

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilotapp/postpilot-backend/internal/settings"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

type fakeSettingsRepo struct {
	settings.Repository
	rows    []models.AutomationSetting
	deleted []uuid.UUID
}

func (f *fakeSettingsRepo) ListDuplicateGroups(context.Context) ([]settings.DuplicateGroup, error) {
	counts := map[string]int64{}
	for _, row := range f.rows {
		counts[row.LocationID]++
	}
	var groups []settings.DuplicateGroup
	for locationID, count := range counts {
		if count > 1 {
			groups = append(groups, settings.DuplicateGroup{LocationID: locationID, Count: count})
		}
	}
	return groups, nil
}

func (f *fakeSettingsRepo) ListByLocationIDs(_ context.Context, locationIDs []string) ([]models.AutomationSetting, error) {
	wanted := map[string]bool{}
	for _, id := range locationIDs {
		wanted[id] = true
	}
	var out []models.AutomationSetting
	for _, row := range f.rows {
		if wanted[row.LocationID] {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeSettingsRepo) DeleteByIDs(_ context.Context, ids []uuid.UUID) (int64, error) {
	f.deleted = append(f.deleted, ids...)
	return int64(len(ids)), nil
}

func TestDuplicatesPlanAndApply(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	twoDaysAgo := now.Add(-2 * 24 * time.Hour)

	loser := models.AutomationSetting{
		ID:         uuid.New(),
		LocationID: "locations/1",
		UpdatedAt:  now.Add(-30 * 24 * time.Hour),
	}
	winner := models.AutomationSetting{
		ID:         uuid.New(),
		LocationID: "locations/1",
		UserID:     uuid.New(),
		LastRunAt:  &twoDaysAgo,
		UpdatedAt:  now.Add(-24 * time.Hour),
	}
	singleton := models.AutomationSetting{
		ID:         uuid.New(),
		LocationID: "locations/2",
		UserID:     uuid.New(),
	}

	repo := &fakeSettingsRepo{rows: []models.AutomationSetting{loser, winner, singleton}}
	op, err := NewDuplicates(repo, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)

	plans, err := op.Plan(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "locations/1", plans[0].LocationID)
	assert.Equal(t, winner.ID, plans[0].Keep.ID)
	require.Len(t, plans[0].Delete, 1)
	assert.Equal(t, loser.ID, plans[0].Delete[0].ID)
	assert.Greater(t, plans[0].Keep.Score, plans[0].Delete[0].Score)

	// Planning is side-effect free.
	assert.Empty(t, repo.deleted)

	deleted, err := op.Apply(context.Background(), plans)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, []uuid.UUID{loser.ID}, repo.deleted)
}

func TestDuplicatesPlanEmptyWhenClean(t *testing.T) {
	repo := &fakeSettingsRepo{rows: []models.AutomationSetting{{
		ID:         uuid.New(),
		LocationID: "locations/1",
	}}}
	op, err := NewDuplicates(repo, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)

	plans, err := op.Plan(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, plans)

	deleted, err := op.Apply(context.Background(), plans)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
