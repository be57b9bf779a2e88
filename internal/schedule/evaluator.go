package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/postpilotapp/postpilot-backend/pkg/db/models"
	"github.com/postpilotapp/postpilot-backend/pkg/enums"
)

// Reason explains why a location was or was not due.
type Reason string

const (
	ReasonDue              Reason = "due"
	ReasonDisabled         Reason = "disabled"
	ReasonMalformedClock   Reason = "malformed_schedule"
	ReasonBeforeSchedule   Reason = "before_scheduled_time"
	ReasonAlreadyRanToday  Reason = "already_ran_today"
	ReasonIntervalNotMet   Reason = "frequency_interval_not_met"
	ReasonInvalidFrequency Reason = "invalid_frequency"
)

// testIntervalGap is the minimum spacing between test_interval runs.
const testIntervalGap = 5 * time.Minute

// Decision is the outcome of evaluating one setting at one instant.
type Decision struct {
	Due    bool
	Reason Reason
}

// Evaluator decides whether a location's scheduled post is due. It is pure:
// no clocks, no I/O; callers pass now explicitly.
type Evaluator struct {
	loc *time.Location
}

// NewEvaluator builds an evaluator for the given IANA timezone name.
func NewEvaluator(timezone string) (*Evaluator, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}
	return &Evaluator{loc: loc}, nil
}

// Location exposes the evaluator's timezone for callers formatting output.
func (e *Evaluator) Location() *time.Location {
	return e.loc
}

// Evaluate reports whether the setting is due at the provided instant.
// A malformed schedule never panics and never fires; the decision carries
// the reason so the dispatcher can report it.
func (e *Evaluator) Evaluate(setting models.AutomationSetting, now time.Time) Decision {
	if !setting.Enabled {
		return Decision{Reason: ReasonDisabled}
	}

	clock, err := ParseClock(setting.Schedule)
	if err != nil {
		return Decision{Reason: ReasonMalformedClock}
	}

	if !setting.Frequency.IsValid() {
		return Decision{Reason: ReasonInvalidFrequency}
	}

	localNow := now.In(e.loc)
	scheduledToday := time.Date(
		localNow.Year(), localNow.Month(), localNow.Day(),
		clock.Hour, clock.Minute, 0, 0, e.loc,
	)

	if localNow.Before(scheduledToday) {
		return Decision{Reason: ReasonBeforeSchedule}
	}

	if setting.LastRunAt != nil {
		lastRun := setting.LastRunAt.In(e.loc)

		// test_interval re-fires within the same day; it only needs a short
		// gap since the previous run.
		if setting.Frequency == enums.FrequencyTestInterval {
			if localNow.Sub(lastRun) < testIntervalGap {
				return Decision{Reason: ReasonIntervalNotMet}
			}
			return Decision{Due: true, Reason: ReasonDue}
		}

		if sameCalendarDay(lastRun, localNow) {
			return Decision{Reason: ReasonAlreadyRanToday}
		}
		if gap := setting.Frequency.MinIntervalDays(); gap > 0 {
			if calendarDaysBetween(lastRun, localNow) < gap {
				return Decision{Reason: ReasonIntervalNotMet}
			}
		}
	}

	return Decision{Due: true, Reason: ReasonDue}
}

// ranToday reports whether the setting already fired on now's calendar day.
func (e *Evaluator) ranToday(setting models.AutomationSetting, now time.Time) bool {
	if setting.LastRunAt == nil {
		return false
	}
	return sameCalendarDay(setting.LastRunAt.In(e.loc), now.In(e.loc))
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// calendarDaysBetween counts whole calendar-day boundaries crossed between
// the two instants, both already in the evaluator's zone. The midnight
// difference is rounded, not truncated: a DST transition makes one day 23
// or 25 hours and must still count as one day.
func calendarDaysBetween(earlier, later time.Time) int {
	startOfEarlier := time.Date(earlier.Year(), earlier.Month(), earlier.Day(), 0, 0, 0, 0, earlier.Location())
	startOfLater := time.Date(later.Year(), later.Month(), later.Day(), 0, 0, 0, 0, later.Location())
	return int(math.Round(startOfLater.Sub(startOfEarlier).Hours() / 24))
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses the stored "HH:MM" schedule string.
func ParseClock(value string) (Clock, error) {
	var c Clock
	if len(value) != 5 || value[2] != ':' {
		return Clock{}, fmt.Errorf("schedule %q is not HH:MM", value)
	}
	if _, err := fmt.Sscanf(value, "%02d:%02d", &c.Hour, &c.Minute); err != nil {
		return Clock{}, fmt.Errorf("schedule %q is not HH:MM: %w", value, err)
	}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 {
		return Clock{}, fmt.Errorf("schedule %q out of range", value)
	}
	return c, nil
}
