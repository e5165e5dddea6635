package controller

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvethink/testrail-exporter/pkg/config"
	"github.com/helvethink/testrail-exporter/pkg/schemas"
)

func TestGarbageCollectMetrics(t *testing.T) {
	ctx := context.Background()

	cfg := config.Config{}
	cfg.Project.LookbackDays = 7

	_, c := newTestController(t, cfg)

	now := time.Now().UTC()

	fresh := schemas.Run{ID: 10, Name: "fresh", CreatedOn: now.Unix()}
	stale := schemas.Run{ID: 20, Name: "stale", CreatedOn: now.AddDate(0, 0, -30).Unix()}

	require.NoError(t, c.Store.SetRun(ctx, fresh))
	require.NoError(t, c.Store.SetRun(ctx, stale))

	for _, m := range []schemas.Metric{
		{Kind: schemas.MetricKindRunPassedCount, Labels: prometheus.Labels{"run_id": "10", "created_date": fresh.CreatedDate()}, Value: 1},
		{Kind: schemas.MetricKindRunPassedCount, Labels: prometheus.Labels{"run_id": "20", "created_date": stale.CreatedDate()}, Value: 2},
		// Series referring to a run which was never stored, e.g. deleted upstream
		{Kind: schemas.MetricKindRunPassedCount, Labels: prometheus.Labels{"run_id": "999", "created_date": "1970-01-01 00:00:00"}, Value: 3},
	} {
		require.NoError(t, c.Store.SetMetric(ctx, m))
	}

	require.NoError(t, c.GarbageCollectMetrics(ctx))

	// The stale run fell out of the lookback window
	exists, err := c.Store.RunExists(ctx, stale.Key())
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = c.Store.RunExists(ctx, fresh.Key())
	require.NoError(t, err)
	assert.True(t, exists)

	// Only the series of the remaining run survived
	metrics, err := c.Store.Metrics(ctx)
	require.NoError(t, err)
	require.Len(t, metrics, 1)

	for _, m := range metrics {
		assert.Equal(t, "10", m.RunID())
	}
}

func TestGarbageCollectMetricsEmptyStore(t *testing.T) {
	cfg := config.Config{}
	cfg.Project.LookbackDays = 7

	_, c := newTestController(t, cfg)

	assert.NoError(t, c.GarbageCollectMetrics(context.Background()))
}
