package controller

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helvethink/testrail-exporter/pkg/schemas"
)

// CycleReport summarizes the outcome of a collection cycle for logging purposes.
type CycleReport struct {
	RunsProcessed   int           // Number of runs whose metrics were refreshed
	RunsSkipped     int           // Number of runs skipped because their results could not be fetched
	ResultsExported int           // Number of per-result series emitted
	ResultsIgnored  int           // Number of results ignored because they carry the untested status
	Duration        time.Duration // Wall clock duration of the cycle
}

// CollectProject runs a full collection cycle for the configured project.
//
// It fetches all completed runs within the lookback window, stores them, and
// refreshes the run-level and result-level metric series in the store. Runs
// whose results cannot be fetched are skipped for this cycle, their run-level
// series are still refreshed and the next trigger will retry the results.
func (c *Controller) CollectProject(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "controller:CollectProject")
	defer span.End()
	span.SetAttributes(attribute.Int("project_id", c.Config.Project.ID))

	start := time.Now()
	since := start.UTC().AddDate(0, 0, -c.Config.Project.LookbackDays)

	log.WithFields(log.Fields{
		"project-id":    c.Config.Project.ID,
		"lookback-days": c.Config.Project.LookbackDays,
	}).Info("starting collection cycle")

	runs, err := c.TestRail.ListCompletedRuns(ctx, c.Config.Project.ID, since)
	if err != nil {
		return err
	}

	report := CycleReport{}

	for _, run := range runs {
		if err := c.Store.SetRun(ctx, run); err != nil {
			log.WithContext(ctx).
				WithFields(log.Fields{
					"run-id": run.ID,
				}).
				WithError(err).
				Error("writing run to the store")
		}

		c.emitRunMetrics(ctx, run)

		// A failure on a single run must not abort the rest of the cycle, the
		// run is skipped and retried on the next trigger.
		titles, err := c.TestRail.ListTestTitles(ctx, run.ID)
		if err != nil {
			log.WithContext(ctx).
				WithFields(log.Fields{
					"run-id": run.ID,
				}).
				WithError(err).
				Warn("fetching run tests, skipping run for this cycle")

			report.RunsSkipped++

			continue
		}

		results, err := c.TestRail.ListResults(ctx, run.ID)
		if err != nil {
			log.WithContext(ctx).
				WithFields(log.Fields{
					"run-id": run.ID,
				}).
				WithError(err).
				Warn("fetching run results, skipping run for this cycle")

			report.RunsSkipped++

			continue
		}

		exported, ignored := c.emitResultMetrics(ctx, run, results, titles)
		report.ResultsExported += exported
		report.ResultsIgnored += ignored
		report.RunsProcessed++
	}

	report.Duration = time.Since(start)

	log.WithFields(log.Fields{
		"runs-processed":   report.RunsProcessed,
		"runs-skipped":     report.RunsSkipped,
		"results-exported": report.ResultsExported,
		"results-ignored":  report.ResultsIgnored,
		"duration":         report.Duration,
	}).Info("collection cycle completed")

	return nil
}

// emitRunMetrics stores the run-level series of a single run: the info series
// carrying the summary counts as labels, one count series per standard status,
// and one count series per resolved custom status.
func (c *Controller) emitRunMetrics(ctx context.Context, run schemas.Run) {
	createdDate := run.CreatedDate()
	runID := strconv.Itoa(run.ID)

	storeSetMetric(ctx, c.Store, schemas.Metric{
		Kind: schemas.MetricKindRunInfo,
		Labels: prometheus.Labels{
			"run_id":       runID,
			"name":         run.Name,
			"created_date": createdDate,
			"passed":       strconv.Itoa(run.PassedCount),
			"failed":       strconv.Itoa(run.FailedCount),
			"retest":       strconv.Itoa(run.RetestCount),
			"untested":     strconv.Itoa(run.UntestedCount),
			"blocked":      strconv.Itoa(run.BlockedCount),
		},
		Value: 1,
	})

	countLabels := prometheus.Labels{
		"run_id":       runID,
		"created_date": createdDate,
	}

	for kind, count := range map[schemas.MetricKind]int{
		schemas.MetricKindRunPassedCount:   run.PassedCount,
		schemas.MetricKindRunFailedCount:   run.FailedCount,
		schemas.MetricKindRunRetestCount:   run.RetestCount,
		schemas.MetricKindRunUntestedCount: run.UntestedCount,
		schemas.MetricKindRunBlockedCount:  run.BlockedCount,
	} {
		storeSetMetric(ctx, c.Store, schemas.Metric{
			Kind:   kind,
			Labels: countLabels,
			Value:  float64(count),
		})
	}

	for fieldName, count := range run.CustomCounts {
		// Custom count fields without a catalog entry are ignored, exporting
		// them would produce metric families nobody asked for.
		metricName, ok := c.Catalog.Resolve(fieldName)
		if !ok {
			log.WithFields(log.Fields{
				"run-id":     run.ID,
				"field-name": fieldName,
			}).Debug("no status definition for custom count field, ignoring")

			continue
		}

		storeSetMetric(ctx, c.Store, schemas.Metric{
			Kind:       schemas.MetricKindRunCustomCount,
			CustomName: metricName,
			Labels:     countLabels,
			Value:      float64(count),
		})
	}
}

// emitResultMetrics stores one presence series per reported result of a run,
// ignoring results which carry the untested status.
func (c *Controller) emitResultMetrics(ctx context.Context, run schemas.Run, results schemas.TestResults, titles map[int]string) (exported, ignored int) {
	runID := strconv.Itoa(run.ID)

	for _, result := range results {
		if result.Untested() {
			ignored++

			continue
		}

		title, ok := titles[result.TestID]
		if !ok {
			title = "Unknown Title"
		}

		storeSetMetric(ctx, c.Store, schemas.Metric{
			Kind: schemas.MetricKindTestResult,
			Labels: prometheus.Labels{
				"run_id":       runID,
				"test_id":      strconv.Itoa(result.TestID),
				"title":        title,
				"status_id":    strconv.Itoa(result.StatusID),
				"created_date": result.CreatedDate(),
				"comment":      result.Comment,
			},
			Value: 1,
		})

		exported++
	}

	return
}
