package repair

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
)

func TestScore(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	twoDaysAgo := now.Add(-2 * 24 * time.Hour)
	tenDaysAgo := now.Add(-10 * 24 * time.Hour)

	cases := []struct {
		name    string
		setting models.AutomationSetting
		want    int
	}{
		{
			name:    "placeholder user, never ran, stale",
			setting: models.AutomationSetting{UpdatedAt: tenDaysAgo},
			want:    0,
		},
		{
			name:    "real user only",
			setting: models.AutomationSetting{UserID: uuid.New(), UpdatedAt: tenDaysAgo},
			want:    100,
		},
		{
			name: "real user with old run",
			setting: models.AutomationSetting{
				UserID:    uuid.New(),
				LastRunAt: &tenDaysAgo,
				UpdatedAt: tenDaysAgo,
			},
			want: 150,
		},
		{
			name: "real user, recent run, recent update",
			setting: models.AutomationSetting{
				UserID:    uuid.New(),
				LastRunAt: &twoDaysAgo,
				UpdatedAt: now.Add(-24 * time.Hour),
			},
			want: 200,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(tc.setting, now))
		})
	}
}

func TestPickSurvivorPrefersAuthenticRecentRow(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	twoDaysAgo := now.Add(-2 * 24 * time.Hour)

	placeholder := models.AutomationSetting{
		ID:        uuid.New(),
		UpdatedAt: now.Add(-30 * 24 * time.Hour),
	}
	real := models.AutomationSetting{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		LastRunAt: &twoDaysAgo,
		UpdatedAt: now.Add(-24 * time.Hour),
	}

	assert.Equal(t, 1, pickSurvivor([]models.AutomationSetting{placeholder, real}, now))
	assert.Equal(t, 0, pickSurvivor([]models.AutomationSetting{real, placeholder}, now))
}

func TestPickSurvivorTieBreaksOnUpdatedAt(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	older := models.AutomationSetting{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		UpdatedAt: now.Add(-2 * time.Hour),
	}
	newer := models.AutomationSetting{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		UpdatedAt: now.Add(-time.Hour),
	}

	assert.Equal(t, 1, pickSurvivor([]models.AutomationSetting{older, newer}, now))
}
