package repair

import (
	"time"

	"github.com/google/uuid"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
)

// recencyWindow is how recent a run or update must be to earn its bonus.
const recencyWindow = 7 * 24 * time.Hour

// Score ranks a duplicate settings row by authenticity and recency. Rows
// imported under the placeholder user score lowest; rows that actually ran
// recently score highest. Highest score wins, ties broken by updated_at.
func Score(setting models.AutomationSetting, now time.Time) int {
	score := 0
	if setting.UserID != uuid.Nil {
		score += 100
	}
	if setting.LastRunAt != nil {
		score += 50
		if now.Sub(*setting.LastRunAt) <= recencyWindow {
			score += 30
		}
	}
	if now.Sub(setting.UpdatedAt) <= recencyWindow {
		score += 20
	}
	return score
}

// pickSurvivor returns the index of the row to keep within a duplicate
// group. The group must be non-empty.
func pickSurvivor(group []models.AutomationSetting, now time.Time) int {
	best := 0
	bestScore := Score(group[0], now)
	for i := 1; i < len(group); i++ {
		score := Score(group[i], now)
		if score > bestScore || (score == bestScore && group[i].UpdatedAt.After(group[best].UpdatedAt)) {
			best = i
			bestScore = score
		}
	}
	return best
}
