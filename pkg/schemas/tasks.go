package schemas

// TaskType represents the type of task as a string.
type TaskType string

const (
	// TaskTypeCollectProject represents a full collection cycle for the
	// configured project, from run discovery to metric publication.
	TaskTypeCollectProject TaskType = "CollectProject"

	// TaskTypeGarbageCollectMetrics represents a task type for garbage
	// collecting metric series which fell out of the lookback window.
	TaskTypeGarbageCollectMetrics TaskType = "GarbageCollectMetrics"
)

// Tasks is a map structure used to keep track of tasks.
// It maps a TaskType to another map, which associates task identifiers with empty interfaces.
type Tasks map[TaskType]map[string]interface{}
