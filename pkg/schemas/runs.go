package schemas

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// UntestedStatusID is the reserved TestRail status identifier for tests which
// have not been executed yet. Results carrying it are kept out of the
// per-result metric series, the run summary field remains authoritative for
// the aggregated count.
const UntestedStatusID = 10

// Run represents a test execution batch in TestRail, together with its
// aggregated per-status counts.
type Run struct {
	ID          int    `json:"id"`           // Unique identifier of the run
	Name        string `json:"name"`         // Human readable name of the run
	IsCompleted bool   `json:"is_completed"` // Whether the run has been closed in TestRail
	CreatedOn   int64  `json:"created_on"`   // Unix timestamp of the run creation
	CompletedOn *int64 `json:"completed_on"` // Unix timestamp of the run completion, nil while running

	PassedCount   int `json:"passed_count"`   // Number of passed tests
	FailedCount   int `json:"failed_count"`   // Number of failed tests
	RetestCount   int `json:"retest_count"`   // Number of tests flagged for retest
	UntestedCount int `json:"untested_count"` // Number of untested tests
	BlockedCount  int `json:"blocked_count"`  // Number of blocked tests

	// CustomCounts holds the `custom_*_count` fields returned by the API,
	// keyed by their field name. Which of them end up exported is decided by
	// the status catalog, not by this type.
	CustomCounts map[string]int `json:"-"`
}

// RunKey is a unique identifier for a Run within the store.
type RunKey string

// Runs is a map of RunKey to Run, used to keep track of multiple runs.
type Runs map[RunKey]Run

// Key returns the store key of the run.
func (r Run) Key() RunKey {
	return RunKey(strconv.Itoa(r.ID))
}

// CreatedDate returns the run creation timestamp formatted the way it is
// exposed in the `created_date` metric label.
func (r Run) CreatedDate() string {
	return FormatTimestamp(r.CreatedOn)
}

// FormatTimestamp converts a Unix timestamp into the UTC date string used as
// metric label value.
func FormatTimestamp(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05")
}

// UnmarshalJSON decodes a run payload, capturing the dynamic
// `custom_*_count` integer fields which the API returns alongside the
// standard summary counts.
func (r *Run) UnmarshalJSON(data []byte) error {
	type localRun Run

	var _r localRun
	if err := json.Unmarshal(data, &_r); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	_r.CustomCounts = make(map[string]int)

	for k, v := range fields {
		if !strings.HasPrefix(k, "custom_") || !strings.HasSuffix(k, "_count") {
			continue
		}

		var count int
		if err := json.Unmarshal(v, &count); err != nil {
			// Non-integer custom fields are not countable statuses
			continue
		}

		_r.CustomCounts[k] = count
	}

	*r = Run(_r)

	return nil
}
