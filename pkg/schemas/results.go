package schemas

// TestResult represents the outcome of a single test within a run.
type TestResult struct {
	ID        int    `json:"id"`         // Unique identifier of the result entry
	TestID    int    `json:"test_id"`    // Identifier of the test the result belongs to
	StatusID  int    `json:"status_id"`  // Status identifier of the result
	CreatedOn int64  `json:"created_on"` // Unix timestamp of the result creation
	Comment   string `json:"comment"`    // Optional free-form comment
}

// TestResults is a list of test results belonging to a single run.
type TestResults []TestResult

// Untested reports whether the result carries the reserved "untested"
// status and must therefore be excluded from per-result metric series.
func (tr TestResult) Untested() bool {
	return tr.StatusID == UntestedStatusID
}

// CreatedDate returns the result creation timestamp formatted the way it is
// exposed in the `created_date` metric label.
func (tr TestResult) CreatedDate() string {
	return FormatTimestamp(tr.CreatedOn)
}
