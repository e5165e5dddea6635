package controller

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/helvethink/testrail-exporter/pkg/schemas"
)

// GarbageCollectMetrics removes stale data from the store.
//
// Runs whose creation date has slipped outside the lookback window are
// deleted first, then every metric series referring to a run which is no
// longer stored is dropped. This keeps the exported series converging with
// what a fresh collection cycle would produce, runs deleted upstream
// disappear within one garbage collection interval.
func (c *Controller) GarbageCollectMetrics(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller:GarbageCollectMetrics")
	defer span.End()

	// Log the start and end of the garbage collection process
	log.Info("starting 'metrics' garbage collection")
	defer log.Info("ending 'metrics' garbage collection")

	since := time.Now().UTC().AddDate(0, 0, -c.Config.Project.LookbackDays).Unix()

	// Retrieve all runs currently stored
	storedRuns, err := c.Store.Runs(ctx)
	if err != nil {
		return err
	}

	// Evict runs which are no longer within the lookback window
	for k, run := range storedRuns {
		if run.CreatedOn >= since {
			continue
		}

		if err = c.Store.DelRun(ctx, k); err != nil {
			return err
		}

		delete(storedRuns, k)

		log.WithFields(log.Fields{
			"run-id": run.ID,
		}).Info("deleted run from the store")
	}

	// Retrieve all metrics currently stored
	storedMetrics, err := c.Store.Metrics(ctx)
	if err != nil {
		return err
	}

	// Drop every metric series whose run is no longer stored
	deletedMetrics := 0

	for _, m := range storedMetrics {
		if _, exists := storedRuns[schemas.RunKey(m.RunID())]; exists {
			continue
		}

		storeDelMetric(ctx, c.Store, m)

		deletedMetrics++
	}

	log.WithFields(log.Fields{
		"metrics-count": deletedMetrics,
	}).Debug("garbage collected metrics")

	return nil
}
