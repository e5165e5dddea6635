package store

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/helvethink/testrail-exporter/pkg/schemas"
)

// Store is an interface that defines methods for interacting with storage.
// It keeps track of the runs seen within the lookback window, the exported
// metric series, and the currently queued tasks.
type Store interface {
	// Methods for manipulating runs
	SetRun(ctx context.Context, r schemas.Run) error                // SetRun stores a run
	DelRun(ctx context.Context, rk schemas.RunKey) error            // DelRun deletes a run
	GetRun(ctx context.Context, r *schemas.Run) error               // GetRun retrieves a run
	RunExists(ctx context.Context, rk schemas.RunKey) (bool, error) // RunExists checks the existence of a run
	Runs(ctx context.Context) (schemas.Runs, error)                 // Runs retrieves all runs
	RunsCount(ctx context.Context) (int64, error)                   // RunsCount counts the number of runs

	// Methods for manipulating metrics
	SetMetric(ctx context.Context, m schemas.Metric) error                // SetMetric stores a metric
	DelMetric(ctx context.Context, mk schemas.MetricKey) error            // DelMetric deletes a metric
	GetMetric(ctx context.Context, m *schemas.Metric) error               // GetMetric retrieves a metric
	MetricExists(ctx context.Context, mk schemas.MetricKey) (bool, error) // MetricExists checks the existence of a metric
	Metrics(ctx context.Context) (schemas.Metrics, error)                 // Metrics retrieves all metrics
	MetricsCount(ctx context.Context) (int64, error)                      // MetricsCount counts the number of metrics

	// Helpers to keep track of currently queued tasks and avoid scheduling them
	// twice at the risk of ending up with concurrent collection cycles
	QueueTask(ctx context.Context, tt schemas.TaskType, taskUUID, processUUID string) (bool, error) // QueueTask adds a task to the queue
	UnqueueTask(ctx context.Context, tt schemas.TaskType, taskUUID string) error                    // UnqueueTask removes a task from the queue
	CurrentlyQueuedTasksCount(ctx context.Context) (uint64, error)                                  // CurrentlyQueuedTasksCount counts the number of currently queued tasks
	ExecutedTasksCount(ctx context.Context) (uint64, error)                                         // ExecutedTasksCount counts the number of executed tasks
}

// NewLocalStore creates a new instance of local storage.
func NewLocalStore() Store {
	return &Local{
		runs:    make(schemas.Runs),
		metrics: make(schemas.Metrics),
	}
}

// NewRedisStore creates a new instance of storage using Redis.
func NewRedisStore(client *redis.Client) Store {
	return &Redis{
		Client: client,
	}
}

// New creates a new store, Redis-backed when a client is provided so that
// several exporter replicas can share queue deduplication state.
func New(ctx context.Context, r *redis.Client) (s Store) {
	_, span := otel.Tracer("testrail-exporter").Start(ctx, "store:New")
	defer span.End()

	if r != nil {
		s = NewRedisStore(r)
	} else {
		s = NewLocalStore()
	}

	return s
}
