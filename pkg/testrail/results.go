package testrail

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helvethink/testrail-exporter/pkg/schemas"
)

// resultsPage is the paginated envelope of the get_results_for_run endpoint.
type resultsPage struct {
	Offset  int                  `json:"offset"`
	Limit   int                  `json:"limit"`
	Size    int                  `json:"size"`
	Results []schemas.TestResult `json:"results"`
}

// ListResults paginates through all results recorded for the given run.
// Filtering of untested entries is left to the caller, the run summary still
// needs the aggregate counts.
func (c *Client) ListResults(ctx context.Context, runID int) (results schemas.TestResults, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "testrail:ListResults")
	defer span.End()

	span.SetAttributes(attribute.Int("run_id", runID))

	var offset int

	for {
		endpoint := fmt.Sprintf("get_results_for_run/%d&offset=%d&limit=%d", runID, offset, c.pageSize)

		log.WithFields(log.Fields{
			"run-id": runID,
			"offset": offset,
		}).Trace("listing run results")

		var page resultsPage
		if err = c.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		results = append(results, page.Results...)

		if len(page.Results) < c.pageSize {
			break
		}

		offset += c.pageSize
	}

	return results, nil
}
