package dispatch

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/postpilotapp/postpilot-backend/internal/gbp"
	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
)

var summaryTemplates = []string{
	"Visit %s today! %s",
	"Looking for %s? Stop by %s.",
	"%s is open and ready for you. %s",
}

// BuildPost assembles the local post body from the location's stored
// business metadata. Template choice is derived from the location and day
// so consecutive days rotate copy without storing any state.
func BuildPost(setting models.AutomationSetting, now time.Time) gbp.LocalPost {
	name := setting.BusinessName
	if name == "" {
		name = "our store"
	}

	keywords := strings.TrimSpace(setting.Keywords)
	tagline := ""
	if keywords != "" {
		parts := strings.Split(keywords, ",")
		tagline = fmt.Sprintf("Known for %s.", strings.TrimSpace(parts[dayIndex(setting.LocationID, now, len(parts))]))
	}

	var summary string
	switch dayIndex(setting.LocationID, now, len(summaryTemplates)) {
	case 1:
		subject := setting.Category
		if subject == "" {
			subject = "great service"
		}
		summary = fmt.Sprintf(summaryTemplates[1], subject, name)
		if tagline != "" {
			summary += " " + tagline
		}
	case 2:
		summary = fmt.Sprintf(summaryTemplates[2], name, tagline)
	default:
		summary = fmt.Sprintf(summaryTemplates[0], name, tagline)
	}

	return gbp.LocalPost{
		LanguageCode: "en",
		Summary:      strings.TrimSpace(summary),
		TopicType:    "STANDARD",
	}
}

func dayIndex(locationID string, now time.Time, modulo int) int {
	if modulo <= 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(locationID))
	return (int(h.Sum32()%uint32(modulo)) + now.YearDay()) % modulo
}
