package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"      // Redis client for Go
	"github.com/vmihailenco/msgpack/v5" // Library for MessagePack serialization

	"github.com/helvethink/testrail-exporter/pkg/schemas" // Data schemas
)

// Constants for Redis keys
const (
	redisRunsKey               string = "runs"
	redisMetricsKey            string = "metrics"
	redisTaskKey               string = "task"
	redisTasksExecutedCountKey string = "tasksExecutedCount"
	redisKeepaliveKey          string = "keepalive"
)

// Redis represents a Redis client wrapper.
type Redis struct {
	*redis.Client
}

// SetRun stores a run in Redis.
func (r *Redis) SetRun(ctx context.Context, run schemas.Run) error {
	// Marshal the run into a binary format using MessagePack
	marshalledRun, err := msgpack.Marshal(run)
	if err != nil {
		return err
	}

	// Store the marshalled run in Redis
	_, err = r.HSet(ctx, redisRunsKey, string(run.Key()), marshalledRun).Result()
	return err
}

// DelRun deletes a run from Redis.
func (r *Redis) DelRun(ctx context.Context, k schemas.RunKey) error {
	// Delete the run from Redis
	_, err := r.HDel(ctx, redisRunsKey, string(k)).Result()
	return err
}

// GetRun retrieves a run from Redis.
func (r *Redis) GetRun(ctx context.Context, run *schemas.Run) error {
	// Check if the run exists
	exists, err := r.RunExists(ctx, run.Key())
	if err != nil {
		return err
	}

	if exists {
		k := run.Key()

		// Retrieve the marshalled run from Redis
		marshalledRun, err := r.HGet(ctx, redisRunsKey, string(k)).Result()
		if err != nil {
			return err
		}

		// Unmarshal the run data into the provided run structure
		if err = msgpack.Unmarshal([]byte(marshalledRun), run); err != nil {
			return err
		}
	}

	return nil
}

// RunExists checks if a run exists in Redis.
func (r *Redis) RunExists(ctx context.Context, k schemas.RunKey) (bool, error) {
	// Check if the run key exists in Redis
	return r.HExists(ctx, redisRunsKey, string(k)).Result()
}

// Runs retrieves all runs from Redis.
func (r *Redis) Runs(ctx context.Context) (schemas.Runs, error) {
	runs := schemas.Runs{}

	// Retrieve all marshalled runs from Redis
	marshalledRuns, err := r.HGetAll(ctx, redisRunsKey).Result()
	if err != nil {
		return runs, err
	}

	// Unmarshal each run and add it to the runs map
	for stringRunKey, marshalledRun := range marshalledRuns {
		run := schemas.Run{}

		if err = msgpack.Unmarshal([]byte(marshalledRun), &run); err != nil {
			return runs, err
		}

		runs[schemas.RunKey(stringRunKey)] = run
	}

	return runs, nil
}

// RunsCount returns the count of runs in Redis.
func (r *Redis) RunsCount(ctx context.Context) (int64, error) {
	// Get the number of runs stored in Redis
	return r.HLen(ctx, redisRunsKey).Result()
}

// SetMetric stores a metric in Redis.
func (r *Redis) SetMetric(ctx context.Context, m schemas.Metric) error {
	// Marshal the metric into a binary format using MessagePack
	marshalledMetric, err := msgpack.Marshal(m)
	if err != nil {
		return err
	}

	// Store the marshalled metric in Redis
	_, err = r.HSet(ctx, redisMetricsKey, string(m.Key()), marshalledMetric).Result()
	return err
}

// DelMetric deletes a metric from Redis.
func (r *Redis) DelMetric(ctx context.Context, k schemas.MetricKey) error {
	// Delete the metric from Redis
	_, err := r.HDel(ctx, redisMetricsKey, string(k)).Result()
	return err
}

// MetricExists checks if a metric exists in Redis.
func (r *Redis) MetricExists(ctx context.Context, k schemas.MetricKey) (bool, error) {
	// Check if the metric key exists in Redis
	return r.HExists(ctx, redisMetricsKey, string(k)).Result()
}

// GetMetric retrieves a metric from Redis.
func (r *Redis) GetMetric(ctx context.Context, m *schemas.Metric) error {
	// Check if the metric exists
	exists, err := r.MetricExists(ctx, m.Key())
	if err != nil {
		return err
	}

	if exists {
		k := m.Key()

		// Retrieve the marshalled metric from Redis
		marshalledMetric, err := r.HGet(ctx, redisMetricsKey, string(k)).Result()
		if err != nil {
			return err
		}

		// Unmarshal the metric data into the provided metric structure
		if err = msgpack.Unmarshal([]byte(marshalledMetric), m); err != nil {
			return err
		}
	}

	return nil
}

// Metrics retrieves all metrics from Redis.
func (r *Redis) Metrics(ctx context.Context) (schemas.Metrics, error) {
	metrics := schemas.Metrics{}

	// Retrieve all marshalled metrics from Redis
	marshalledMetrics, err := r.HGetAll(ctx, redisMetricsKey).Result()
	if err != nil {
		return metrics, err
	}

	// Unmarshal each metric and add it to the metrics map
	for stringMetricKey, marshalledMetric := range marshalledMetrics {
		m := schemas.Metric{}

		if err := msgpack.Unmarshal([]byte(marshalledMetric), &m); err != nil {
			return metrics, err
		}

		metrics[schemas.MetricKey(stringMetricKey)] = m
	}

	return metrics, nil
}

// MetricsCount returns the count of metrics in Redis.
func (r *Redis) MetricsCount(ctx context.Context) (int64, error) {
	// Get the number of metrics stored in Redis
	return r.HLen(ctx, redisMetricsKey).Result()
}

// SetKeepalive sets a key with a UUID corresponding to the currently running process.
func (r *Redis) SetKeepalive(ctx context.Context, uuid string, ttl time.Duration) (bool, error) {
	// Set a key with the UUID and a time-to-live (TTL) in Redis
	return r.SetNX(ctx, fmt.Sprintf("%s:%s", redisKeepaliveKey, uuid), nil, ttl).Result()
}

// KeepaliveExists returns whether a keepalive exists or not for a particular UUID.
func (r *Redis) KeepaliveExists(ctx context.Context, uuid string) (bool, error) {
	// Check if the keepalive key exists in Redis
	exists, err := r.Exists(ctx, fmt.Sprintf("%s:%s", redisKeepaliveKey, uuid)).Result()
	return exists == 1, err
}

// getRedisQueueKey generates a Redis key for a task.
func getRedisQueueKey(tt schemas.TaskType, taskUUID string) string {
	return fmt.Sprintf("%s:%v:%s", redisTaskKey, tt, taskUUID)
}

// QueueTask registers that we are queueing the task.
// It returns true if it managed to schedule it, false if it was already scheduled.
func (r *Redis) QueueTask(ctx context.Context, tt schemas.TaskType, taskUUID, processUUID string) (set bool, err error) {
	k := getRedisQueueKey(tt, taskUUID)

	// Attempt to set the key, if it already exists, do not overwrite it
	set, err = r.SetNX(ctx, k, processUUID, 0).Result()
	if err != nil || set {
		return
	}

	// If the key already exists, check if the associated process UUID is the same as the current one
	var tpuuid string
	if tpuuid, err = r.Get(ctx, k).Result(); err != nil {
		return
	}

	// If the process UUID is different, check if the associated process is still alive
	if tpuuid != processUUID {
		var uuidIsAlive bool
		if uuidIsAlive, err = r.KeepaliveExists(ctx, tpuuid); err != nil {
			return
		}

		// If the process is not alive, override the key and schedule the task
		if !uuidIsAlive {
			if _, err = r.Set(ctx, k, processUUID, 0).Result(); err != nil {
				return
			}
			return true, nil
		}
	}

	return
}

// UnqueueTask removes the task from the tracker.
func (r *Redis) UnqueueTask(ctx context.Context, tt schemas.TaskType, taskUUID string) (err error) {
	var matched int64

	// Delete the task key from Redis
	matched, err = r.Del(ctx, getRedisQueueKey(tt, taskUUID)).Result()
	if err != nil {
		return
	}

	// Increment the count of executed tasks
	if matched > 0 {
		_, err = r.Incr(ctx, redisTasksExecutedCountKey).Result()
	}

	return
}

// CurrentlyQueuedTasksCount returns the count of currently queued tasks.
func (r *Redis) CurrentlyQueuedTasksCount(ctx context.Context) (count uint64, err error) {
	// Scan for all task keys and count them
	iter := r.Scan(ctx, 0, fmt.Sprintf("%s:*", redisTaskKey), 0).Iterator()
	for iter.Next(ctx) {
		count++
	}

	err = iter.Err()
	return
}

// ExecutedTasksCount returns the count of executed tasks.
func (r *Redis) ExecutedTasksCount(ctx context.Context) (uint64, error) {
	// Retrieve the count of executed tasks from Redis
	countString, err := r.Get(ctx, redisTasksExecutedCountKey).Result()
	if err != nil {
		return 0, err
	}

	// Convert the count string to an integer
	c, err := strconv.Atoi(countString)
	return uint64(c), err
}
