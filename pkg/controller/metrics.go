package controller

import (
	"context"
	"fmt"
	"reflect"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/helvethink/testrail-exporter/pkg/schemas"
	"github.com/helvethink/testrail-exporter/pkg/statuses"
	"github.com/helvethink/testrail-exporter/pkg/store"
	"github.com/helvethink/testrail-exporter/pkg/testrail"
)

// Registry wraps a pointer to prometheus.Registry and manages metric collectors.
type Registry struct {
	*prometheus.Registry // The main Prometheus registry.

	// InternalCollectors holds custom internal application metrics (not user-facing).
	InternalCollectors struct {
		CurrentlyQueuedTasksCount prometheus.Collector // Number of tasks currently queued.
		ExecutedTasksCount        prometheus.Collector // Total number of tasks that have been executed.
		TestRailAPIRequestsCount  prometheus.Collector // Total number of TestRail API requests made.
		MetricsCount              prometheus.Collector // Number of exported metrics.
		RunsCount                 prometheus.Collector // Total number of test runs tracked.
	}

	// Collectors maps each MetricKind to its Prometheus collector.
	Collectors RegistryCollectors

	// CustomCollectors maps the metric name of each catalog supplied custom
	// status to its Prometheus collector.
	CustomCollectors map[string]prometheus.Collector
}

// RegistryCollectors defines a mapping between metric kinds and their Prometheus collectors.
type RegistryCollectors map[schemas.MetricKind]prometheus.Collector

// NewRegistry initializes and returns a new Registry instance with all the necessary collectors registered.
// The status catalog drives which custom status count collectors exist.
func NewRegistry(ctx context.Context, catalog statuses.Catalog) *Registry {
	r := &Registry{
		Registry: prometheus.NewRegistry(), // Create a new Prometheus registry instance.

		// Initialize the collectors for each supported metric kind.
		Collectors: RegistryCollectors{
			schemas.MetricKindRunInfo:          NewCollectorRunInfo(),
			schemas.MetricKindRunPassedCount:   NewCollectorRunPassedCount(),
			schemas.MetricKindRunFailedCount:   NewCollectorRunFailedCount(),
			schemas.MetricKindRunRetestCount:   NewCollectorRunRetestCount(),
			schemas.MetricKindRunUntestedCount: NewCollectorRunUntestedCount(),
			schemas.MetricKindRunBlockedCount:  NewCollectorRunBlockedCount(),
			schemas.MetricKindTestResult:       NewCollectorTestResult(),
		},

		CustomCollectors: make(map[string]prometheus.Collector),
	}

	// One collector per custom status definition of the catalog.
	for _, sd := range catalog.CustomEntries() {
		r.CustomCollectors[sd.MetricName] = NewCollectorCustomStatusCount(sd)
	}

	// Register internal metrics collectors (e.g., for internal health and stats).
	r.RegisterInternalCollectors()

	// Register all custom collectors into the Prometheus registry.
	if err := r.RegisterCollectors(); err != nil {
		// Fatal error: the application cannot proceed without successful metric registration.
		log.WithContext(ctx).
			Fatal(err)
	}

	return r
}

// RegisterInternalCollectors declares and registers internal application metrics to the Prometheus registry.
func (r *Registry) RegisterInternalCollectors() {
	// Initialize each internal collector with its corresponding constructor.
	// These collectors track the internal state of the system (not user metrics).
	r.InternalCollectors.CurrentlyQueuedTasksCount = NewInternalCollectorCurrentlyQueuedTasksCount() // Number of currently queued tasks
	r.InternalCollectors.ExecutedTasksCount = NewInternalCollectorExecutedTasksCount()               // Number of tasks that have been executed
	r.InternalCollectors.TestRailAPIRequestsCount = NewInternalCollectorTestRailAPIRequestsCount()   // Total TestRail API requests
	r.InternalCollectors.MetricsCount = NewInternalCollectorMetricsCount()                           // Number of metrics exported
	r.InternalCollectors.RunsCount = NewInternalCollectorRunsCount()                                 // Number of tracked runs

	// Register all initialized internal collectors with the Prometheus registry.
	// The underscore `_` ignores any error returned by Register (e.g., if already registered).
	_ = r.Register(r.InternalCollectors.CurrentlyQueuedTasksCount)
	_ = r.Register(r.InternalCollectors.ExecutedTasksCount)
	_ = r.Register(r.InternalCollectors.TestRailAPIRequestsCount)
	_ = r.Register(r.InternalCollectors.MetricsCount)
	_ = r.Register(r.InternalCollectors.RunsCount)
}

// ExportInternalMetrics gathers internal statistics from the store and TestRail client,
// then sets the values for the corresponding Prometheus internal collectors.
func (r *Registry) ExportInternalMetrics(ctx context.Context, tr *testrail.Client, s store.Store) (err error) {
	var (
		currentlyQueuedTasks uint64 // Number of tasks currently in the queue
		executedTasksCount   uint64 // Number of tasks that have been executed
		metricsCount         int64  // Number of stored/exported metrics
		runsCount            int64  // Number of runs tracked
	)

	// Retrieve the number of currently queued tasks from the store
	currentlyQueuedTasks, err = s.CurrentlyQueuedTasksCount(ctx)
	if err != nil {
		return
	}

	// Retrieve the number of executed tasks
	executedTasksCount, err = s.ExecutedTasksCount(ctx)
	if err != nil {
		return
	}

	// Retrieve the number of runs
	runsCount, err = s.RunsCount(ctx)
	if err != nil {
		return
	}

	// Retrieve the number of stored metrics
	metricsCount, err = s.MetricsCount(ctx)
	if err != nil {
		return
	}

	// Set Prometheus gauge values for each internal metric.
	// All collectors are asserted as GaugeVec and updated with empty labels.
	r.InternalCollectors.CurrentlyQueuedTasksCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(currentlyQueuedTasks))
	r.InternalCollectors.ExecutedTasksCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(executedTasksCount))
	r.InternalCollectors.TestRailAPIRequestsCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(tr.RequestsCounter.Load()))
	r.InternalCollectors.MetricsCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(metricsCount))
	r.InternalCollectors.RunsCount.(*prometheus.GaugeVec).With(prometheus.Labels{}).Set(float64(runsCount))

	return
}

// RegisterCollectors adds all defined custom metric collectors to the Prometheus registry.
// It iterates over the Registry.Collectors and Registry.CustomCollectors maps and registers each collector.
// If a registration fails, it returns a formatted error.
func (r *Registry) RegisterCollectors() error {
	for _, c := range r.Collectors {
		// Attempt to register the collector to the Prometheus registry
		if err := r.Register(c); err != nil {
			// If registration fails, return a descriptive error
			return fmt.Errorf("could not add provided collector '%v' to the Prometheus registry: %v", c, err)
		}
	}

	for _, c := range r.CustomCollectors {
		if err := r.Register(c); err != nil {
			return fmt.Errorf("could not add provided collector '%v' to the Prometheus registry: %v", c, err)
		}
	}

	// Return nil if all collectors were successfully registered
	return nil
}

// GetCollector returns the Prometheus collector associated with the given metric.
// Custom status counts are looked up by the metric's custom name, everything
// else directly by its kind.
func (r *Registry) GetCollector(m schemas.Metric) prometheus.Collector {
	if m.Kind == schemas.MetricKindRunCustomCount {
		return r.CustomCollectors[m.CustomName]
	}

	return r.Collectors[m.Kind]
}

// ExportMetrics updates the corresponding Prometheus collectors with the provided metric data.
// It iterates over all metrics and dispatches their values to the appropriate registered collectors.
func (r *Registry) ExportMetrics(metrics schemas.Metrics) {
	for _, m := range metrics {
		log.Tracef("exporting metric: %v", m.Kind)

		// Get the collector associated with the metric
		switch c := r.GetCollector(m).(type) {
		// If it's a GaugeVec, set the value directly
		case *prometheus.GaugeVec:
			c.With(m.Labels).Set(m.Value)

		// If it's a CounterVec, increment the counter by the value
		case *prometheus.CounterVec:
			c.With(m.Labels).Add(m.Value)

		// If the collector type is not supported, log an error
		default:
			log.Errorf("unsupported collector type : %v", reflect.TypeOf(c))
		}
	}
}
