package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// ParseScheduleHours converts a comma-separated list of UTC hours such as
// "0,12" into a sorted, deduplicated slice of trigger hours. It is kept as a
// pure function so the parsing rules can be tested independently of the
// scheduler goroutines.
func ParseScheduleHours(s string) (hours []int, err error) {
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("empty hour value")
		}

		var h int

		h, err = strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("hour '%s' is not an integer", field)
		}

		if h < 0 || h > 23 {
			return nil, fmt.Errorf("hour %d is out of the 0-23 range", h)
		}

		if !slices.Contains(hours, h) {
			hours = append(hours, h)
		}
	}

	slices.Sort(hours)

	return
}

// NextTrigger returns the next time after `now` at which one of the given
// UTC trigger hours is reached. Hours must be sorted, as returned by
// ParseScheduleHours.
func NextTrigger(now time.Time, hours []int) time.Time {
	now = now.UTC()

	for _, h := range hours {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), h, 0, 0, 0, time.UTC)
		if candidate.After(now) {
			return candidate
		}
	}

	// All of today's trigger hours have passed, wrap to the first hour tomorrow
	tomorrow := now.AddDate(0, 0, 1)

	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), hours[0], 0, 0, 0, time.UTC)
}
