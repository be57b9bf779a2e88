package dispatch

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
)

func TestBuildPost(t *testing.T) {
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	setting := models.AutomationSetting{
		LocationID:   "locations/1",
		BusinessName: "Chai Corner",
		Category:     "cafe",
		Keywords:     "filter coffee, masala chai",
	}

	post := BuildPost(setting, now)
	assert.Equal(t, "en", post.LanguageCode)
	assert.Equal(t, "STANDARD", post.TopicType)
	assert.NotEmpty(t, post.Summary)
	assert.Contains(t, post.Summary, "Chai Corner")
}

func TestBuildPostWithoutMetadata(t *testing.T) {
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	post := BuildPost(models.AutomationSetting{LocationID: "locations/2"}, now)
	assert.NotEmpty(t, post.Summary)
	assert.False(t, strings.Contains(post.Summary, "%"), "unfilled template verb in %q", post.Summary)
}

func TestBuildPostRotatesAcrossDays(t *testing.T) {
	setting := models.AutomationSetting{
		LocationID:   "locations/3",
		BusinessName: "Chai Corner",
		Category:     "cafe",
		Keywords:     "coffee",
	}

	seen := map[string]bool{}
	for day := 0; day < 3; day++ {
		now := time.Date(2025, time.March, 10+day, 9, 0, 0, 0, time.UTC)
		seen[BuildPost(setting, now).Summary] = true
	}
	assert.Greater(t, len(seen), 1, "copy should rotate across consecutive days")
}

func TestBuildPostDeterministicWithinDay(t *testing.T) {
	setting := models.AutomationSetting{LocationID: "locations/4", BusinessName: "X"}
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, BuildPost(setting, now), BuildPost(setting, now.Add(time.Hour)))
}
