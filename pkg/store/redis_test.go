package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvethink/testrail-exporter/pkg/schemas"
)

func newTestRedisStore(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr := miniredis.RunT(t)

	return mr, &Redis{
		Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
	}
}

func TestRedisRuns(t *testing.T) {
	ctx := context.Background()
	_, r := newTestRedisStore(t)

	run := schemas.Run{ID: 1234, Name: "nightly", IsCompleted: true, CreatedOn: 1000}

	require.NoError(t, r.SetRun(ctx, run))

	exists, err := r.RunExists(ctx, run.Key())
	require.NoError(t, err)
	assert.True(t, exists)

	got := schemas.Run{ID: 1234}
	require.NoError(t, r.GetRun(ctx, &got))
	assert.Equal(t, run, got)

	runs, err := r.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemas.Runs{run.Key(): run}, runs)

	count, err := r.RunsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, r.DelRun(ctx, run.Key()))

	exists, err = r.RunExists(ctx, run.Key())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisMetrics(t *testing.T) {
	ctx := context.Background()
	_, r := newTestRedisStore(t)

	m := schemas.Metric{
		Kind:   schemas.MetricKindRunFailedCount,
		Labels: prometheus.Labels{"run_id": "1234", "created_date": "2023-01-01 00:00:00"},
		Value:  7,
	}

	require.NoError(t, r.SetMetric(ctx, m))

	exists, err := r.MetricExists(ctx, m.Key())
	require.NoError(t, err)
	assert.True(t, exists)

	got := schemas.Metric{Kind: m.Kind, Labels: m.Labels}
	require.NoError(t, r.GetMetric(ctx, &got))
	assert.Equal(t, m, got)

	metrics, err := r.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, schemas.Metrics{m.Key(): m}, metrics)

	count, err := r.MetricsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, r.DelMetric(ctx, m.Key()))

	count, err = r.MetricsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRedisQueueTask(t *testing.T) {
	ctx := context.Background()
	_, r := newTestRedisStore(t)

	ok, err := r.QueueTask(ctx, schemas.TaskTypeCollectProject, "foo", "process-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.QueueTask(ctx, schemas.TaskTypeCollectProject, "foo", "process-1")
	require.NoError(t, err)
	assert.False(t, ok)

	count, err := r.CurrentlyQueuedTasksCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	require.NoError(t, r.UnqueueTask(ctx, schemas.TaskTypeCollectProject, "foo"))

	count, err = r.CurrentlyQueuedTasksCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	executed, err := r.ExecutedTasksCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), executed)
}

func TestRedisQueueTaskTakeover(t *testing.T) {
	ctx := context.Background()
	_, r := newTestRedisStore(t)

	// A task owned by a live process cannot be taken over
	set, err := r.SetKeepalive(ctx, "process-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, set)

	ok, err := r.QueueTask(ctx, schemas.TaskTypeCollectProject, "foo", "process-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.QueueTask(ctx, schemas.TaskTypeCollectProject, "foo", "process-2")
	require.NoError(t, err)
	assert.False(t, ok)

	// Once the owner's keepalive expires, another process takes the task over
	_, r2 := newTestRedisStore(t)

	ok, err = r2.QueueTask(ctx, schemas.TaskTypeCollectProject, "foo", "process-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r2.QueueTask(ctx, schemas.TaskTypeCollectProject, "foo", "process-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisKeepalive(t *testing.T) {
	ctx := context.Background()
	mr, r := newTestRedisStore(t)

	exists, err := r.KeepaliveExists(ctx, "process-1")
	require.NoError(t, err)
	assert.False(t, exists)

	set, err := r.SetKeepalive(ctx, "process-1", time.Second)
	require.NoError(t, err)
	assert.True(t, set)

	exists, err = r.KeepaliveExists(ctx, "process-1")
	require.NoError(t, err)
	assert.True(t, exists)

	mr.FastForward(2 * time.Second)

	exists, err = r.KeepaliveExists(ctx, "process-1")
	require.NoError(t, err)
	assert.False(t, exists)
}
