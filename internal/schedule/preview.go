package schedule

import (
	"sort"
	"time"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
)

// UpcomingPost is a display-only projection of a scheduled trigger.
type UpcomingPost struct {
	LocationID   string    `json:"locationId"`
	BusinessName string    `json:"businessName"`
	ScheduledAt  time.Time `json:"scheduledAt"`
}

// Preview returns locations whose scheduled time falls inside the look-ahead
// window starting at now. Locations that already ran today are excluded.
// Purely informational; the dispatcher never consults this.
func (e *Evaluator) Preview(settings []models.AutomationSetting, now time.Time, window time.Duration) []UpcomingPost {
	localNow := now.In(e.loc)
	end := localNow.Add(window)

	var upcoming []UpcomingPost
	for _, setting := range settings {
		if !setting.Enabled {
			continue
		}
		clock, err := ParseClock(setting.Schedule)
		if err != nil {
			continue
		}
		scheduled := time.Date(
			localNow.Year(), localNow.Month(), localNow.Day(),
			clock.Hour, clock.Minute, 0, 0, e.loc,
		)
		if scheduled.Before(localNow) || scheduled.After(end) {
			continue
		}
		if e.ranToday(setting, localNow) {
			continue
		}
		upcoming = append(upcoming, UpcomingPost{
			LocationID:   setting.LocationID,
			BusinessName: setting.BusinessName,
			ScheduledAt:  scheduled,
		})
	}

	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].ScheduledAt.Before(upcoming[j].ScheduledAt)
	})
	return upcoming
}
