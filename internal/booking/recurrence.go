package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZoneResolver turns an IANA timezone name into a location. Injected so tests
// can supply fixed-offset zones without a tz database.
type ZoneResolver func(name string) (*time.Location, error)

// Calculator computes occurrence and attempt instants for slot rules.
type Calculator struct {
	zones ZoneResolver
	log   zerolog.Logger
}

func NewCalculator(zones ZoneResolver, log zerolog.Logger) *Calculator {
	if zones == nil {
		zones = time.LoadLocation
	}
	return &Calculator{zones: zones, log: log.With().Str("component", "recurrence").Logger()}
}

// slotWeekday translates the caller-facing weekday numbering (0=Sunday through
// 6=Saturday) into time.Weekday.
func slotWeekday(d int) time.Weekday {
	return time.Weekday(((d % 7) + 7) % 7)
}

// NextOccurrence returns the offset-th future occurrence of the slot's rule
// relative to reference, as a UTC instant.
func (c *Calculator) NextOccurrence(slot Slot, reference time.Time, offset int) (time.Time, error) {
	loc := c.location(slot)
	local := reference.In(loc)

	hh, mm, err := parseClock(slot.TimeOfDay)
	if err != nil {
		return time.Time{}, &RuleError{Field: "time_of_day", Reason: err.Error()}
	}

	switch slot.Frequency {
	case FrequencyWeekly, FrequencyFortnightly:
		day := 0
		if slot.DayOfWeek != nil {
			day = *slot.DayOfWeek
		}
		target := slotWeekday(day)
		period := 7
		if slot.Frequency == FrequencyFortnightly {
			period = 14
		}

		daysUntil := (int(target) - int(local.Weekday()) + 7) % 7
		candidate := time.Date(local.Year(), local.Month(), local.Day(), hh, mm, 0, 0, loc).
			AddDate(0, 0, daysUntil+offset*period)
		if !candidate.After(local) {
			candidate = candidate.AddDate(0, 0, period)
		}
		return candidate.UTC(), nil

	case FrequencyMonthly:
		desired := 1
		if slot.DayOfMonth != nil {
			desired = *slot.DayOfMonth
		}

		safe := clampDay(desired, local.Year(), local.Month())
		candidate := time.Date(local.Year(), local.Month(), safe, hh, mm, 0, 0, loc)

		monthDelta := offset
		if !candidate.After(local) {
			monthDelta++
		}

		total := local.Year()*12 + int(local.Month()) - 1 + monthDelta
		year, month := total/12, time.Month(total%12+1)
		safe = clampDay(desired, year, month)
		return time.Date(year, month, safe, hh, mm, 0, 0, loc).UTC(), nil

	default:
		return time.Time{}, &RuleError{Field: "frequency", Reason: fmt.Sprintf("unsupported value %q", slot.Frequency)}
	}
}

// AttemptTime derives when to try booking an occurrence. The result is never
// earlier than reference plus one minute, so the worker cannot be scheduled
// to wake for an instant that has already passed.
func (c *Calculator) AttemptTime(slot Slot, occurrence, reference time.Time) (time.Time, error) {
	loc := c.location(slot)
	local := occurrence.In(loc)

	var attempt time.Time
	if slot.AttemptStrategy == StrategyRelease {
		release := slot.ReleaseTime
		if release == "" {
			release = "00:00"
		}
		rh, rm, err := parseClock(release)
		if err != nil {
			return time.Time{}, &RuleError{Field: "release_time", Reason: err.Error()}
		}
		day := local.AddDate(0, 0, -slot.ReleaseDaysBefore)
		attempt = time.Date(day.Year(), day.Month(), day.Day(), rh, rm, 0, 0, loc).UTC()
	} else {
		// Whole days move by wall clock; the sub-day part is a plain
		// duration in the occurrence's zone.
		subDay := time.Duration(slot.OffsetHours)*time.Hour + time.Duration(slot.OffsetMinutes)*time.Minute
		attempt = local.AddDate(0, 0, -slot.OffsetDays).Add(-subDay).UTC()
	}

	floor := reference.Add(time.Minute).UTC()
	if !attempt.After(floor) {
		attempt = floor
	}
	return attempt, nil
}

func (c *Calculator) location(slot Slot) *time.Location {
	name := slot.Timezone
	if name == "" {
		name = "UTC"
	}
	loc, err := c.zones(name)
	if err != nil {
		c.log.Warn().Str("timezone", name).Int64("slot_id", slot.ID).Msg("unknown timezone, defaulting to UTC")
		return time.UTC
	}
	return loc
}

func clampDay(desired int, year int, month time.Month) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if desired > last {
		return last
	}
	if desired < 1 {
		return 1
	}
	return desired
}

func parseClock(s string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", s)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", s)
	}
	return hh, mm, nil
}
