package enums

import "fmt"

// Frequency controls how often a location's automated post fires.
type Frequency string

const (
	FrequencyDaily        Frequency = "daily"
	FrequencyAlternateDay Frequency = "alternate_day"
	FrequencyWeekly       Frequency = "weekly"
	// FrequencyTestInterval re-fires within the same day once the scheduled
	// time has passed, with a short minimum gap between runs; only meant for
	// staging verification.
	FrequencyTestInterval Frequency = "test_interval"
)

var validFrequencies = []Frequency{
	FrequencyDaily,
	FrequencyAlternateDay,
	FrequencyWeekly,
	FrequencyTestInterval,
}

// String implements fmt.Stringer.
func (f Frequency) String() string {
	return string(f)
}

// IsValid reports whether the value is known.
func (f Frequency) IsValid() bool {
	for _, candidate := range validFrequencies {
		if candidate == f {
			return true
		}
	}
	return false
}

// MinIntervalDays returns the minimum number of calendar days that must
// elapse between runs. Zero means no day-based gap is enforced.
func (f Frequency) MinIntervalDays() int {
	switch f {
	case FrequencyAlternateDay:
		return 2
	case FrequencyWeekly:
		return 7
	default:
		return 0
	}
}

// ParseFrequency converts raw input into a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	for _, candidate := range validFrequencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid frequency %q", value)
}
