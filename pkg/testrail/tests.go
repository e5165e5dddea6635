package testrail

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// test carries the subset of the test payload the exporter needs.
type test struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// testsPage is the paginated envelope of the get_tests endpoint.
type testsPage struct {
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
	Size   int    `json:"size"`
	Tests  []test `json:"tests"`
}

// ListTestTitles fetches the tests of a run and returns a mapping from test
// identifier to human-readable title, used to label the per-result series.
func (c *Client) ListTestTitles(ctx context.Context, runID int) (titles map[int]string, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "testrail:ListTestTitles")
	defer span.End()

	span.SetAttributes(attribute.Int("run_id", runID))

	titles = make(map[int]string)

	var offset int

	for {
		endpoint := fmt.Sprintf("get_tests/%d&offset=%d&limit=%d", runID, offset, c.pageSize)

		log.WithFields(log.Fields{
			"run-id": runID,
			"offset": offset,
		}).Trace("listing run tests")

		var page testsPage
		if err = c.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, t := range page.Tests {
			titles[t.ID] = t.Title
		}

		if len(page.Tests) < c.pageSize {
			break
		}

		offset += c.pageSize
	}

	return titles, nil
}
