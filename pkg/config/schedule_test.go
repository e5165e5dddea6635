package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheduleHours(t *testing.T) {
	tests := []struct {
		input    string
		expected []int
	}{
		{"0,12", []int{0, 12}},
		{"12,0", []int{0, 12}},
		{"6", []int{6}},
		{" 3, 1 ,3", []int{1, 3}},
		{"0,6,12,18,23", []int{0, 6, 12, 18, 23}},
	}

	for _, tc := range tests {
		hours, err := ParseScheduleHours(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.expected, hours, tc.input)
	}
}

func TestParseScheduleHoursInvalid(t *testing.T) {
	for _, input := range []string{"", "24", "-1", "a", "0,,12", "0;12"} {
		_, err := ParseScheduleHours(input)
		assert.Error(t, err, input)
	}
}

func TestNextTrigger(t *testing.T) {
	hours := []int{0, 12}

	// Before noon, the next trigger is noon of the same day
	now := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC), NextTrigger(now, hours))

	// After the last trigger of the day, wrap to the first hour tomorrow
	now = time.Date(2025, 3, 14, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), NextTrigger(now, hours))

	// Exactly on a trigger hour, the next trigger is the following one
	now = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), NextTrigger(now, hours))

	// A single trigger hour wraps around the whole day
	now = time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 15, 6, 0, 0, 0, time.UTC), NextTrigger(now, []int{6}))
}
