package controller

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/helvethink/testrail-exporter/pkg/statuses"
)

// Commonly used label sets for Prometheus metrics in this application.
// These labels help categorize and filter metrics for better observability.

var (
	// runInfoLabels describes a test run, the summary counts are carried as
	// labels so that a single series fully identifies the run state.
	runInfoLabels = []string{"run_id", "name", "created_date", "passed", "failed", "retest", "untested", "blocked"}

	// runCountLabels identifies the per-status count series of a run.
	runCountLabels = []string{"run_id", "created_date"}

	// testResultLabels describes an individual reported test result.
	testResultLabels = []string{"run_id", "test_id", "title", "status_id", "created_date", "comment"}
)

// NewInternalCollectorCurrentlyQueuedTasksCount creates and returns a new Prometheus GaugeVec metric collector
// for tracking the number of currently queued tasks in the system.
//
// This metric has no labels (empty label slice), representing a simple gauge value.
// It can be used internally to monitor the task queue size.
func NewInternalCollectorCurrentlyQueuedTasksCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tre_currently_queued_tasks_count",
			Help: "Number of tasks in the queue",
		},
		[]string{}, // no labels for this metric
	)
}

// NewInternalCollectorExecutedTasksCount returns a new Prometheus gauge collector
// for the metric "tre_executed_tasks_count" which tracks the total number of tasks
// that have been executed by the system.
//
// This metric is a gauge without labels.
func NewInternalCollectorExecutedTasksCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tre_executed_tasks_count",
			Help: "Number of tasks executed",
		},
		[]string{}, // no labels
	)
}

// NewInternalCollectorTestRailAPIRequestsCount returns a new Prometheus gauge collector
// for the metric "tre_testrail_api_requests_count" which monitors the total number of
// TestRail API requests made by the application.
//
// This metric is useful to observe API usage and detect potential throttling issues.
//
// This gauge has no labels.
func NewInternalCollectorTestRailAPIRequestsCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tre_testrail_api_requests_count",
			Help: "TestRail API requests count",
		},
		[]string{}, // no labels
	)
}

// NewInternalCollectorRunsCount returns a new Prometheus gauge collector
// for the metric "tre_runs_count" which tracks the number of test runs currently
// held in the store, i.e. the completed runs seen within the lookback window.
//
// The metric has no labels.
func NewInternalCollectorRunsCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tre_runs_count",
			Help: "Number of TestRail runs being exported",
		},
		[]string{}, // no labels
	)
}

// NewInternalCollectorMetricsCount returns a new Prometheus gauge collector
// for the metric "tre_metrics_count" which tracks the number of metric series
// currently held in the store.
//
// The metric has no labels.
func NewInternalCollectorMetricsCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tre_metrics_count",
			Help: "Number of metrics being exported",
		},
		[]string{}, // no labels
	)
}

// NewCollectorRunInfo returns a new collector for the testrail_run_info metric,
// a presence series whose labels describe a completed test run and its summary counts.
func NewCollectorRunInfo() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "testrail_run_info",
			Help: "Information about a TestRail test run",
		},
		runInfoLabels,
	)
}

// NewCollectorRunPassedCount returns a new collector for the test_run_passed_count metric.
func NewCollectorRunPassedCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "test_run_passed_count",
			Help: "Number of passed tests",
		},
		runCountLabels,
	)
}

// NewCollectorRunFailedCount returns a new collector for the test_run_failed_count metric.
func NewCollectorRunFailedCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "test_run_failed_count",
			Help: "Number of failed tests",
		},
		runCountLabels,
	)
}

// NewCollectorRunRetestCount returns a new collector for the test_run_retest_count metric.
func NewCollectorRunRetestCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "test_run_retest_count",
			Help: "Number of tests to retest",
		},
		runCountLabels,
	)
}

// NewCollectorRunUntestedCount returns a new collector for the test_run_untested_count metric.
func NewCollectorRunUntestedCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "test_run_untested_count",
			Help: "Number of untested tests",
		},
		runCountLabels,
	)
}

// NewCollectorRunBlockedCount returns a new collector for the test_run_blocked_count metric.
func NewCollectorRunBlockedCount() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "test_run_blocked_count",
			Help: "Number of blocked tests",
		},
		runCountLabels,
	)
}

// NewCollectorCustomStatusCount returns a new collector for a configuration
// driven custom status, following the test_run_<metric_name>_count naming
// convention of the standard status counts.
func NewCollectorCustomStatusCount(sd statuses.StatusDefinition) prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: fmt.Sprintf("test_run_%s_count", sd.MetricName),
			Help: sd.Description,
		},
		runCountLabels,
	)
}

// NewCollectorTestResult returns a new collector for the testrail_test_result metric,
// a presence series describing an individual non-untested test result.
func NewCollectorTestResult() prometheus.Collector {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "testrail_test_result",
			Help: "Result of an individual test of a run",
		},
		testResultLabels,
	)
}
