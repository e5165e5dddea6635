package controller

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvethink/testrail-exporter/pkg/schemas"
	"github.com/helvethink/testrail-exporter/pkg/statuses"
	"github.com/helvethink/testrail-exporter/pkg/store"
	"github.com/helvethink/testrail-exporter/pkg/testrail"
)

func newTestCatalog(t *testing.T) statuses.Catalog {
	t.Helper()

	statusPath := filepath.Join(t.TempDir(), "custom_statuses.json")
	require.NoError(t, os.WriteFile(statusPath, []byte(`{
  "custom_statuses": [
    {"status_id": 6, "field_name": "custom_status1_count", "metric_name": "skipped"}
  ]
}`), 0o600))

	catalog, err := statuses.Load(statusPath)
	require.NoError(t, err)

	return catalog
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(context.Background(), newTestCatalog(t))

	assert.Len(t, r.Collectors, 7)
	assert.Contains(t, r.CustomCollectors, "skipped")

	// The registry accepts being gathered straight away
	_, err := r.Gather()
	assert.NoError(t, err)
}

func TestGetCollectorRouting(t *testing.T) {
	r := NewRegistry(context.Background(), newTestCatalog(t))

	assert.Equal(t,
		r.Collectors[schemas.MetricKindRunPassedCount],
		r.GetCollector(schemas.Metric{Kind: schemas.MetricKindRunPassedCount}),
	)

	assert.Equal(t,
		r.CustomCollectors["skipped"],
		r.GetCollector(schemas.Metric{Kind: schemas.MetricKindRunCustomCount, CustomName: "skipped"}),
	)

	assert.Nil(t, r.GetCollector(schemas.Metric{Kind: schemas.MetricKindRunCustomCount, CustomName: "unknown"}))
}

func TestExportMetrics(t *testing.T) {
	r := NewRegistry(context.Background(), newTestCatalog(t))

	countLabels := prometheus.Labels{"run_id": "10", "created_date": "2023-01-01 00:00:00"}

	r.ExportMetrics(schemas.Metrics{
		"1": {Kind: schemas.MetricKindRunPassedCount, Labels: countLabels, Value: 3},
		"2": {Kind: schemas.MetricKindRunCustomCount, CustomName: "skipped", Labels: countLabels, Value: 4},
		"3": {
			Kind: schemas.MetricKindTestResult,
			Labels: prometheus.Labels{
				"run_id":       "10",
				"test_id":      "100",
				"title":        "Login works",
				"status_id":    "1",
				"created_date": "2023-01-01 00:00:00",
				"comment":      "ok",
			},
			Value: 1,
		},
	})

	passed := r.Collectors[schemas.MetricKindRunPassedCount].(*prometheus.GaugeVec)
	assert.Equal(t, float64(3), testutil.ToFloat64(passed.With(countLabels)))

	skipped := r.CustomCollectors["skipped"].(*prometheus.GaugeVec)
	assert.Equal(t, float64(4), testutil.ToFloat64(skipped.With(countLabels)))

	// The custom family ends up exposed under its configured name
	families, err := r.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}

	assert.Contains(t, names, "test_run_passed_count")
	assert.Contains(t, names, "test_run_skipped_count")
	assert.Contains(t, names, "testrail_test_result")
}

func TestExportInternalMetrics(t *testing.T) {
	ctx := context.Background()

	r := NewRegistry(ctx, newTestCatalog(t))

	tr, err := testrail.NewClient(testrail.ClientConfig{
		URL:              "http://testrail.example.com",
		Username:         "exporter@example.com",
		APIKey:           "secret",
		UserAgentVersion: "0.0.0",
	})
	require.NoError(t, err)

	s := store.NewLocalStore()

	_, err = s.QueueTask(ctx, schemas.TaskTypeCollectProject, "foo", "")
	require.NoError(t, err)

	require.NoError(t, s.SetRun(ctx, schemas.Run{ID: 10}))
	require.NoError(t, s.SetMetric(ctx, schemas.Metric{
		Kind:   schemas.MetricKindRunPassedCount,
		Labels: prometheus.Labels{"run_id": "10", "created_date": "2023-01-01 00:00:00"},
	}))

	require.NoError(t, r.ExportInternalMetrics(ctx, tr, s))

	queued := r.InternalCollectors.CurrentlyQueuedTasksCount.(*prometheus.GaugeVec)
	assert.Equal(t, float64(1), testutil.ToFloat64(queued.With(prometheus.Labels{})))

	runs := r.InternalCollectors.RunsCount.(*prometheus.GaugeVec)
	assert.Equal(t, float64(1), testutil.ToFloat64(runs.With(prometheus.Labels{})))

	metrics := r.InternalCollectors.MetricsCount.(*prometheus.GaugeVec)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.With(prometheus.Labels{})))

	requests := r.InternalCollectors.TestRailAPIRequestsCount.(*prometheus.GaugeVec)
	assert.Equal(t, float64(0), testutil.ToFloat64(requests.With(prometheus.Labels{})))
}
