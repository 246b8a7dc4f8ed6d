package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validWeeklySlot() Slot {
	return Slot{
		Frequency:       FrequencyWeekly,
		DayOfWeek:       intp(0),
		TimeOfDay:       "10:00",
		Timezone:        "Europe/London",
		DurationMinutes: 60,
		AttemptStrategy: StrategyOffset,
		OffsetDays:      1,
	}
}

func TestValidateSlotAccepts(t *testing.T) {
	assert.NoError(t, ValidateSlot(validWeeklySlot()))

	monthly := validWeeklySlot()
	monthly.Frequency = FrequencyMonthly
	monthly.DayOfWeek = nil
	monthly.DayOfMonth = intp(31)
	assert.NoError(t, ValidateSlot(monthly))

	release := validWeeklySlot()
	release.AttemptStrategy = StrategyRelease
	release.ReleaseDaysBefore = 7
	release.ReleaseTime = "07:15"
	assert.NoError(t, ValidateSlot(release))

	// Release time may be omitted; midnight applies.
	release.ReleaseTime = ""
	assert.NoError(t, ValidateSlot(release))
}

func TestValidateSlotRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Slot)
		field  string
	}{
		{"bad frequency", func(s *Slot) { s.Frequency = "daily" }, "frequency"},
		{"weekly without weekday", func(s *Slot) { s.DayOfWeek = nil }, "day_of_week"},
		{"weekday out of range", func(s *Slot) { s.DayOfWeek = intp(7) }, "day_of_week"},
		{"weekly with month day", func(s *Slot) { s.DayOfMonth = intp(5) }, "day_of_month"},
		{"monthly without day", func(s *Slot) {
			s.Frequency = FrequencyMonthly
			s.DayOfWeek = nil
		}, "day_of_month"},
		{"month day out of range", func(s *Slot) {
			s.Frequency = FrequencyMonthly
			s.DayOfWeek = nil
			s.DayOfMonth = intp(32)
		}, "day_of_month"},
		{"monthly with weekday", func(s *Slot) {
			s.Frequency = FrequencyMonthly
			s.DayOfMonth = intp(15)
		}, "day_of_week"},
		{"bad clock", func(s *Slot) { s.TimeOfDay = "25:00" }, "time_of_day"},
		{"bad timezone", func(s *Slot) { s.Timezone = "Mars/Olympus" }, "timezone"},
		{"negative duration", func(s *Slot) { s.DurationMinutes = -1 }, "duration_minutes"},
		{"negative offset", func(s *Slot) { s.OffsetHours = -2 }, "attempt_strategy"},
		{"negative release days", func(s *Slot) {
			s.AttemptStrategy = StrategyRelease
			s.ReleaseDaysBefore = -1
		}, "release_days_before"},
		{"bad release time", func(s *Slot) {
			s.AttemptStrategy = StrategyRelease
			s.ReleaseTime = "7am"
		}, "release_time"},
		{"unknown strategy", func(s *Slot) { s.AttemptStrategy = "guess" }, "attempt_strategy"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slot := validWeeklySlot()
			tc.mutate(&slot)

			err := ValidateSlot(slot)
			var ruleErr *RuleError
			require.ErrorAs(t, err, &ruleErr)
			assert.Equal(t, tc.field, ruleErr.Field)
		})
	}
}
