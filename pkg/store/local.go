package store

import (
	"context"
	"sync"

	"github.com/helvethink/testrail-exporter/pkg/schemas"
)

// Local represents an in-memory storage implementation for managing runs,
// metrics and queued tasks. It is the default store when no Redis URL is
// configured.
type Local struct {
	runs      schemas.Runs
	runsMutex sync.RWMutex // Mutex for thread-safe access to runs

	metrics      schemas.Metrics
	metricsMutex sync.RWMutex // Mutex for thread-safe access to metrics

	tasks              schemas.Tasks
	tasksMutex         sync.RWMutex // Mutex for thread-safe access to tasks
	executedTasksCount uint64       // Counter for the number of executed tasks
}

// SetRun stores a run in the local storage.
func (l *Local) SetRun(_ context.Context, r schemas.Run) error {
	l.runsMutex.Lock()
	defer l.runsMutex.Unlock()

	l.runs[r.Key()] = r

	return nil
}

// DelRun deletes a run from the local storage.
func (l *Local) DelRun(_ context.Context, k schemas.RunKey) error {
	l.runsMutex.Lock()
	defer l.runsMutex.Unlock()

	delete(l.runs, k)

	return nil
}

// GetRun retrieves a run from the local storage.
func (l *Local) GetRun(ctx context.Context, r *schemas.Run) error {
	exists, _ := l.RunExists(ctx, r.Key())

	if exists {
		l.runsMutex.RLock()
		*r = l.runs[r.Key()]
		l.runsMutex.RUnlock()
	}

	return nil
}

// RunExists checks if a run exists in the local storage.
func (l *Local) RunExists(_ context.Context, k schemas.RunKey) (bool, error) {
	l.runsMutex.RLock()
	defer l.runsMutex.RUnlock()

	_, ok := l.runs[k]

	return ok, nil
}

// Runs retrieves all runs from the local storage.
func (l *Local) Runs(_ context.Context) (runs schemas.Runs, err error) {
	runs = make(schemas.Runs)

	l.runsMutex.RLock()
	defer l.runsMutex.RUnlock()

	for k, v := range l.runs {
		runs[k] = v
	}

	return
}

// RunsCount returns the count of runs in the local storage.
func (l *Local) RunsCount(_ context.Context) (int64, error) {
	l.runsMutex.RLock()
	defer l.runsMutex.RUnlock()

	return int64(len(l.runs)), nil
}

// SetMetric stores a metric in the local storage. Each call replaces the
// whole value of the series, a concurrent scrape either observes the
// previous or the new value, never a partial update.
func (l *Local) SetMetric(_ context.Context, m schemas.Metric) error {
	l.metricsMutex.Lock()
	defer l.metricsMutex.Unlock()

	l.metrics[m.Key()] = m

	return nil
}

// DelMetric deletes a metric from the local storage.
func (l *Local) DelMetric(_ context.Context, k schemas.MetricKey) error {
	l.metricsMutex.Lock()
	defer l.metricsMutex.Unlock()

	delete(l.metrics, k)

	return nil
}

// GetMetric retrieves a metric from the local storage.
func (l *Local) GetMetric(ctx context.Context, m *schemas.Metric) error {
	exists, _ := l.MetricExists(ctx, m.Key())

	if exists {
		l.metricsMutex.RLock()
		*m = l.metrics[m.Key()]
		l.metricsMutex.RUnlock()
	}

	return nil
}

// MetricExists checks if a metric exists in the local storage.
func (l *Local) MetricExists(_ context.Context, k schemas.MetricKey) (bool, error) {
	l.metricsMutex.RLock()
	defer l.metricsMutex.RUnlock()

	_, ok := l.metrics[k]

	return ok, nil
}

// Metrics retrieves all metrics from the local storage.
func (l *Local) Metrics(_ context.Context) (metrics schemas.Metrics, err error) {
	metrics = make(schemas.Metrics)

	l.metricsMutex.RLock()
	defer l.metricsMutex.RUnlock()

	for k, v := range l.metrics {
		metrics[k] = v
	}

	return
}

// MetricsCount returns the count of metrics in the local storage.
func (l *Local) MetricsCount(_ context.Context) (int64, error) {
	l.metricsMutex.RLock()
	defer l.metricsMutex.RUnlock()

	return int64(len(l.metrics)), nil
}

// isTaskAlreadyQueued assesses if a task is already queued or not.
func (l *Local) isTaskAlreadyQueued(tt schemas.TaskType, uniqueID string) bool {
	l.tasksMutex.Lock()
	defer l.tasksMutex.Unlock()

	if l.tasks == nil {
		l.tasks = make(schemas.Tasks)
	}

	taskTypeQueue, ok := l.tasks[tt]
	if !ok {
		l.tasks[tt] = make(map[string]interface{})

		return false
	}

	if _, alreadyQueued := taskTypeQueue[uniqueID]; alreadyQueued {
		return true
	}

	return false
}

// QueueTask registers that we are queueing the task.
// It returns true if it managed to schedule it, false if it was already scheduled.
func (l *Local) QueueTask(_ context.Context, tt schemas.TaskType, uniqueID, _ string) (bool, error) {
	if !l.isTaskAlreadyQueued(tt, uniqueID) {
		l.tasksMutex.Lock()
		defer l.tasksMutex.Unlock()

		l.tasks[tt][uniqueID] = nil

		return true, nil
	}

	return false, nil
}

// UnqueueTask removes the task from the tracker.
func (l *Local) UnqueueTask(_ context.Context, tt schemas.TaskType, uniqueID string) error {
	if l.isTaskAlreadyQueued(tt, uniqueID) {
		l.tasksMutex.Lock()
		defer l.tasksMutex.Unlock()

		delete(l.tasks[tt], uniqueID)

		l.executedTasksCount++
	}

	return nil
}

// CurrentlyQueuedTasksCount returns the count of currently queued tasks.
func (l *Local) CurrentlyQueuedTasksCount(_ context.Context) (count uint64, err error) {
	l.tasksMutex.RLock()
	defer l.tasksMutex.RUnlock()

	for _, t := range l.tasks {
		count += uint64(len(t))
	}

	return
}

// ExecutedTasksCount returns the count of executed tasks.
func (l *Local) ExecutedTasksCount(_ context.Context) (uint64, error) {
	l.tasksMutex.RLock()
	defer l.tasksMutex.RUnlock()

	return l.executedTasksCount, nil
}
