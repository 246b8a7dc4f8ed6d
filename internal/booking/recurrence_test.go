package booking

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCalculator(t *testing.T) *Calculator {
	t.Helper()
	return NewCalculator(time.LoadLocation, zerolog.Nop())
}

func intp(v int) *int { return &v }

func mustUTC(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts.UTC()
}

func TestSlotWeekdayMapping(t *testing.T) {
	assert.Equal(t, time.Sunday, slotWeekday(0))
	assert.Equal(t, time.Monday, slotWeekday(1))
	assert.Equal(t, time.Saturday, slotWeekday(6))
	assert.Equal(t, time.Sunday, slotWeekday(7))
}

func TestNextOccurrenceWeekly(t *testing.T) {
	calc := testCalculator(t)
	slot := Slot{
		Frequency: FrequencyWeekly,
		DayOfWeek: intp(0), // Sunday
		TimeOfDay: "18:30",
		Timezone:  "Europe/London",
	}

	// Wednesday before the target Sunday; London is on GMT in March 8 week.
	ref := mustUTC(t, "2026-03-04T10:00:00Z")

	occ, err := calc.NextOccurrence(slot, ref, 0)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2026-03-08T18:30:00Z"), occ)

	next, err := calc.NextOccurrence(slot, ref, 1)
	require.NoError(t, err)
	assert.Equal(t, occ.AddDate(0, 0, 7), next)
}

func TestNextOccurrenceWeeklySkipsExactReference(t *testing.T) {
	calc := testCalculator(t)
	slot := Slot{
		Frequency: FrequencyWeekly,
		DayOfWeek: intp(0),
		TimeOfDay: "18:30",
		Timezone:  "Europe/London",
	}

	// Reference is exactly the occurrence instant: not strictly after, so
	// the rule rolls to the following week.
	ref := mustUTC(t, "2026-03-08T18:30:00Z")
	occ, err := calc.NextOccurrence(slot, ref, 0)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2026-03-15T18:30:00Z"), occ)
}

func TestNextOccurrenceWeeklyAcrossDST(t *testing.T) {
	calc := testCalculator(t)
	slot := Slot{
		Frequency: FrequencyWeekly,
		DayOfWeek: intp(0),
		TimeOfDay: "18:30",
		Timezone:  "Europe/London",
	}

	// June is BST, so 18:30 local is 17:30 UTC. The local wall clock must
	// stay fixed across the offset change.
	ref := mustUTC(t, "2026-06-03T10:00:00Z")
	occ, err := calc.NextOccurrence(slot, ref, 0)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2026-06-07T17:30:00Z"), occ)
}

func TestNextOccurrenceFortnightly(t *testing.T) {
	calc := testCalculator(t)
	slot := Slot{
		Frequency: FrequencyFortnightly,
		DayOfWeek: intp(0),
		TimeOfDay: "18:30",
		Timezone:  "Europe/London",
	}

	ref := mustUTC(t, "2026-03-04T10:00:00Z")

	occ, err := calc.NextOccurrence(slot, ref, 0)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2026-03-08T18:30:00Z"), occ)

	next, err := calc.NextOccurrence(slot, ref, 1)
	require.NoError(t, err)
	assert.Equal(t, occ.AddDate(0, 0, 14), next)
}

func TestNextOccurrenceMonthlyClampsShortMonths(t *testing.T) {
	calc := testCalculator(t)
	slot := Slot{
		Frequency:  FrequencyMonthly,
		DayOfMonth: intp(31),
		TimeOfDay:  "09:00",
		Timezone:   "UTC",
	}

	ref := mustUTC(t, "2026-01-15T00:00:00Z")

	jan, err := calc.NextOccurrence(slot, ref, 0)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2026-01-31T09:00:00Z"), jan)

	// 2026 is not a leap year: day 31 clamps to February 28.
	feb, err := calc.NextOccurrence(slot, ref, 1)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2026-02-28T09:00:00Z"), feb)

	apr, err := calc.NextOccurrence(slot, ref, 3)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2026-04-30T09:00:00Z"), apr)
}

func TestNextOccurrenceMonthlyAdvancesWhenPassed(t *testing.T) {
	calc := testCalculator(t)
	slot := Slot{
		Frequency:  FrequencyMonthly,
		DayOfMonth: intp(31),
		TimeOfDay:  "10:00",
		Timezone:   "UTC",
	}

	// Reference is after this month's occurrence, so offset 0 lands on the
	// next month (clamped).
	ref := mustUTC(t, "2026-01-31T20:00:00Z")
	occ, err := calc.NextOccurrence(slot, ref, 0)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2026-02-28T10:00:00Z"), occ)
}

func TestNextOccurrenceBadRule(t *testing.T) {
	calc := testCalculator(t)

	_, err := calc.NextOccurrence(Slot{Frequency: FrequencyWeekly, TimeOfDay: "25:99"}, time.Now(), 0)
	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "time_of_day", ruleErr.Field)

	_, err = calc.NextOccurrence(Slot{Frequency: "daily", TimeOfDay: "10:00"}, time.Now(), 0)
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "frequency", ruleErr.Field)
}

func TestAttemptTimeReleaseStrategy(t *testing.T) {
	calc := testCalculator(t)
	slot := Slot{
		Timezone:          "Australia/Sydney",
		AttemptStrategy:   StrategyRelease,
		ReleaseDaysBefore: 1,
		ReleaseTime:       "07:15",
	}

	// Occurrence Sunday 10:00 Sydney (AEDT, +11) = Saturday 23:00 UTC.
	occurrence := mustUTC(t, "2026-03-07T23:00:00Z")
	ref := mustUTC(t, "2026-02-01T00:00:00Z")

	attempt, err := calc.AttemptTime(slot, occurrence, ref)
	require.NoError(t, err)
	// Saturday 07:15 Sydney = Friday 20:15 UTC.
	assert.Equal(t, mustUTC(t, "2026-03-06T20:15:00Z"), attempt)
}

func TestAttemptTimeReleaseDefaultsToMidnight(t *testing.T) {
	calc := testCalculator(t)
	slot := Slot{
		Timezone:          "UTC",
		AttemptStrategy:   StrategyRelease,
		ReleaseDaysBefore: 7,
	}

	occurrence := mustUTC(t, "2026-03-15T18:00:00Z")
	ref := mustUTC(t, "2026-02-01T00:00:00Z")

	attempt, err := calc.AttemptTime(slot, occurrence, ref)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2026-03-08T00:00:00Z"), attempt)
}

func TestAttemptTimeOffsetStrategy(t *testing.T) {
	calc := testCalculator(t)
	slot := Slot{
		Timezone:        "UTC",
		AttemptStrategy: StrategyOffset,
		OffsetDays:      2,
		OffsetHours:     1,
		OffsetMinutes:   30,
	}

	occurrence := mustUTC(t, "2026-03-10T18:00:00Z")
	ref := mustUTC(t, "2026-03-01T00:00:00Z")

	attempt, err := calc.AttemptTime(slot, occurrence, ref)
	require.NoError(t, err)
	assert.Equal(t, mustUTC(t, "2026-03-08T16:30:00Z"), attempt)
}

func TestAttemptTimeClampsToReferenceFloor(t *testing.T) {
	calc := testCalculator(t)
	slot := Slot{
		Timezone:          "UTC",
		AttemptStrategy:   StrategyRelease,
		ReleaseDaysBefore: 30,
	}

	occurrence := mustUTC(t, "2026-03-10T18:00:00Z")
	// The natural attempt instant is weeks in the past relative to this.
	ref := mustUTC(t, "2026-03-09T12:00:00Z")

	attempt, err := calc.AttemptTime(slot, occurrence, ref)
	require.NoError(t, err)
	assert.Equal(t, ref.Add(time.Minute), attempt)
	assert.True(t, attempt.After(ref))
}

func TestAttemptTimeFloorHoldsForAllStrategies(t *testing.T) {
	calc := testCalculator(t)
	ref := mustUTC(t, "2026-03-01T00:00:00Z")
	occurrence := mustUTC(t, "2026-03-01T00:00:30Z")

	for _, slot := range []Slot{
		{Timezone: "UTC", AttemptStrategy: StrategyOffset, OffsetDays: 1},
		{Timezone: "UTC", AttemptStrategy: StrategyRelease, ReleaseDaysBefore: 0},
	} {
		attempt, err := calc.AttemptTime(slot, occurrence, ref)
		require.NoError(t, err)
		assert.False(t, attempt.Before(ref.Add(time.Minute)), "attempt %v before floor", attempt)
	}
}

func TestCalculatorUnknownTimezoneFallsBackToUTC(t *testing.T) {
	calc := testCalculator(t)
	slot := Slot{
		Frequency: FrequencyWeekly,
		DayOfWeek: intp(3),
		TimeOfDay: "12:00",
		Timezone:  "Not/AZone",
	}

	ref := mustUTC(t, "2026-03-02T00:00:00Z")
	occ, err := calc.NextOccurrence(slot, ref, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, occ.UTC().Weekday())
	assert.Equal(t, 12, occ.UTC().Hour())
}
