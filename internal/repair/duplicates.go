package repair

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/internal/settings"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/logger"
)

// DuplicatePlan describes what the duplicates op would do. Produced by the
// dry run, consumed for review before anyone passes --apply.
type DuplicatePlan struct {
	LocationID string    `json:"locationId"`
	Keep       PlanRow   `json:"keep"`
	Delete     []PlanRow `json:"delete"`
}

// PlanRow is one settings row with its computed score.
type PlanRow struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"userId"`
	Score     int        `json:"score"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Duplicates resolves settings rows that share a location_id. Such rows
// predate the unique constraint; new ones cannot appear.
type Duplicates struct {
	repo settings.Repository
	logg *logger.Logger
}

// NewDuplicates builds the op.
func NewDuplicates(repo settings.Repository, logg *logger.Logger) (*Duplicates, error) {
	if repo == nil {
		return nil, fmt.Errorf("repair: settings repository is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("repair: logger is required")
	}
	return &Duplicates{repo: repo, logg: logg}, nil
}

// Plan computes the keep/delete decision for every duplicate group without
// touching any rows.
func (d *Duplicates) Plan(ctx context.Context, now time.Time) ([]DuplicatePlan, error) {
	groups, err := d.repo.ListDuplicateGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing duplicate groups: %w", err)
	}
	if len(groups) == 0 {
		return nil, nil
	}

	locationIDs := make([]string, 0, len(groups))
	for _, group := range groups {
		locationIDs = append(locationIDs, group.LocationID)
	}
	rows, err := d.repo.ListByLocationIDs(ctx, locationIDs)
	if err != nil {
		return nil, fmt.Errorf("loading duplicate rows: %w", err)
	}

	byLocation := make(map[string][]models.AutomationSetting)
	for _, row := range rows {
		byLocation[row.LocationID] = append(byLocation[row.LocationID], row)
	}

	var plans []DuplicatePlan
	for _, locationID := range locationIDs {
		group := byLocation[locationID]
		if len(group) < 2 {
			continue
		}
		survivor := pickSurvivor(group, now)
		plan := DuplicatePlan{
			LocationID: locationID,
			Keep:       planRow(group[survivor], now),
		}
		for i, row := range group {
			if i == survivor {
				continue
			}
			plan.Delete = append(plan.Delete, planRow(row, now))
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// Apply executes a previously computed plan, deleting the losing rows.
func (d *Duplicates) Apply(ctx context.Context, plans []DuplicatePlan) (int64, error) {
	var ids []uuid.UUID
	for _, plan := range plans {
		for _, row := range plan.Delete {
			ids = append(ids, row.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	deleted, err := d.repo.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("deleting duplicate rows: %w", err)
	}
	ctx = d.logg.WithField(ctx, "deleted", deleted)
	d.logg.Info(ctx, "duplicate settings rows removed")
	return deleted, nil
}

func planRow(setting models.AutomationSetting, now time.Time) PlanRow {
	return PlanRow{
		ID:        setting.ID,
		UserID:    setting.UserID,
		Score:     Score(setting, now),
		LastRunAt: setting.LastRunAt,
		UpdatedAt: setting.UpdatedAt,
	}
}
