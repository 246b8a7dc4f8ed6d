package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRankPrefersEarlierListPositions(t *testing.T) {
	times := []string{"18:00", "19:00"}
	courts := []string{"Court 1", "Court 2"}

	assert.Equal(t, 0, Rank("18:00", "Court 1", times, courts, MatchExact))
	assert.Equal(t, 1, Rank("18:00", "Court 2", times, courts, MatchExact))
	assert.Equal(t, 100, Rank("19:00", "Court 1", times, courts, MatchExact))
	assert.True(t, Rank("18:00", "Court 2", times, courts, MatchExact) < Rank("19:00", "Court 1", times, courts, MatchExact),
		"any preferred-time match outranks a better court at a worse time")
}

func TestRankNoMatchScoresListLength(t *testing.T) {
	times := []string{"18:00", "19:00"}
	courts := []string{"Court 1", "Court 2", "Court 3"}

	assert.Equal(t, 200+3, Rank("07:00", "Court 9", times, courts, MatchExact))
}

func TestRankEmptyPreferencesNeverPenalize(t *testing.T) {
	assert.Equal(t, 0, Rank("07:00", "Court 9", nil, nil, MatchExact))
	assert.Equal(t, 0, Rank("07:00", "Court 9", nil, []string{"Court 9"}, MatchExact))
}

func TestRankSubstringMatching(t *testing.T) {
	courts := []string{"court 2"}

	assert.Equal(t, 0, Rank("18:00", "Badminton Court 2", nil, courts, MatchSubstring))
	assert.Equal(t, 1, Rank("18:00", "Badminton Court 2", nil, courts, MatchExact))
}

func TestRankDeterministic(t *testing.T) {
	times := []string{"18:00"}
	courts := []string{"Court 1"}
	first := Rank("18:00", "Court 1", times, courts, MatchExact)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Rank("18:00", "Court 1", times, courts, MatchExact))
	}
}
