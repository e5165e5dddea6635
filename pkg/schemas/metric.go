package schemas

import (
	"fmt"
	"hash/crc32" // For calculating CRC32 checksums
	"strconv"    // For string conversion operations

	"github.com/prometheus/client_golang/prometheus" // Prometheus client library for metrics
)

// MetricKind represents different kinds of metrics that can be collected.
type MetricKind int32

const (
	// MetricKindRunInfo refers to the presence indicator series describing a test run.
	MetricKindRunInfo MetricKind = iota

	// MetricKindRunPassedCount refers to the number of passed tests of a run.
	MetricKindRunPassedCount

	// MetricKindRunFailedCount refers to the number of failed tests of a run.
	MetricKindRunFailedCount

	// MetricKindRunRetestCount refers to the number of tests of a run flagged for retest.
	MetricKindRunRetestCount

	// MetricKindRunUntestedCount refers to the number of untested tests of a run.
	MetricKindRunUntestedCount

	// MetricKindRunBlockedCount refers to the number of blocked tests of a run.
	MetricKindRunBlockedCount

	// MetricKindRunCustomCount refers to a configuration-driven custom status
	// count of a run. The concrete metric family is selected through the
	// CustomName field of the Metric.
	MetricKindRunCustomCount

	// MetricKindTestResult refers to the presence indicator series describing
	// an individual test result.
	MetricKindTestResult
)

// Metric represents a metric with a kind, labels, and a value.
type Metric struct {
	Kind   MetricKind        // The kind of metric
	Labels prometheus.Labels // Labels associated with the metric
	Value  float64           // The value of the metric

	// CustomName selects the custom status collector for
	// MetricKindRunCustomCount metrics, empty otherwise.
	CustomName string
}

// MetricKey is a custom type used as a key for identifying metrics.
type MetricKey string

// Metrics is a map used to keep track of multiple metrics, with MetricKey as the key.
type Metrics map[MetricKey]Metric

// Key generates a unique key for a Metric based on its kind and labels.
func (m Metric) Key() MetricKey {
	// Start with the metric kind as part of the key
	key := strconv.Itoa(int(m.Kind))

	switch m.Kind {
	case MetricKindRunInfo, MetricKindRunPassedCount, MetricKindRunFailedCount, MetricKindRunRetestCount, MetricKindRunUntestedCount, MetricKindRunBlockedCount:
		// Run level series are identified by the run alone
		key += fmt.Sprintf("%v", []string{
			m.Labels["run_id"],
			m.Labels["created_date"],
		})

	case MetricKindRunCustomCount:
		// Custom counts additionally need the metric family they belong to
		key += fmt.Sprintf("%v", []string{
			m.CustomName,
			m.Labels["run_id"],
			m.Labels["created_date"],
		})

	case MetricKindTestResult:
		key += fmt.Sprintf("%v", []string{
			m.Labels["run_id"],
			m.Labels["test_id"],
			m.Labels["status_id"],
			m.Labels["created_date"],
		})
	}

	// Generate a unique key using the CRC32 checksum of the constructed key string
	return MetricKey(strconv.Itoa(int(crc32.ChecksumIEEE([]byte(key)))))
}

// RunID returns the run identifier label of the metric.
func (m Metric) RunID() string {
	return m.Labels["run_id"]
}
