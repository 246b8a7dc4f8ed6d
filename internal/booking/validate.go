package booking

import "time"

// ValidateSlot rejects malformed recurrence rules before they reach the
// calculator. Returns a *RuleError describing the first problem found.
func ValidateSlot(s Slot) error {
	if !s.Frequency.Valid() {
		return &RuleError{Field: "frequency", Reason: "must be weekly, fortnightly or monthly"}
	}

	switch s.Frequency {
	case FrequencyMonthly:
		if s.DayOfMonth == nil {
			return &RuleError{Field: "day_of_month", Reason: "required for monthly slots"}
		}
		if *s.DayOfMonth < 1 || *s.DayOfMonth > 31 {
			return &RuleError{Field: "day_of_month", Reason: "must be between 1 and 31"}
		}
		if s.DayOfWeek != nil {
			return &RuleError{Field: "day_of_week", Reason: "not allowed for monthly slots"}
		}
	default:
		if s.DayOfWeek == nil {
			return &RuleError{Field: "day_of_week", Reason: "required for weekly and fortnightly slots"}
		}
		if *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return &RuleError{Field: "day_of_week", Reason: "must be between 0 (Sunday) and 6 (Saturday)"}
		}
		if s.DayOfMonth != nil {
			return &RuleError{Field: "day_of_month", Reason: "only allowed for monthly slots"}
		}
	}

	if _, _, err := parseClock(s.TimeOfDay); err != nil {
		return &RuleError{Field: "time_of_day", Reason: "must use HH:MM format"}
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return &RuleError{Field: "timezone", Reason: "unknown IANA timezone"}
	}
	if s.DurationMinutes < 0 {
		return &RuleError{Field: "duration_minutes", Reason: "must not be negative"}
	}

	switch s.AttemptStrategy {
	case StrategyOffset:
		if s.OffsetDays < 0 || s.OffsetHours < 0 || s.OffsetMinutes < 0 {
			return &RuleError{Field: "attempt_strategy", Reason: "offsets must not be negative"}
		}
	case StrategyRelease:
		if s.ReleaseDaysBefore < 0 {
			return &RuleError{Field: "release_days_before", Reason: "must not be negative"}
		}
		if s.ReleaseTime != "" {
			if _, _, err := parseClock(s.ReleaseTime); err != nil {
				return &RuleError{Field: "release_time", Reason: "must use HH:MM format"}
			}
		}
	default:
		return &RuleError{Field: "attempt_strategy", Reason: "must be offset or release"}
	}

	return nil
}
