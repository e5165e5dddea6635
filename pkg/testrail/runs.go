package testrail

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/helvethink/testrail-exporter/pkg/schemas"
)

// runsPage is the paginated envelope of the get_runs endpoint.
type runsPage struct {
	Offset int           `json:"offset"`
	Limit  int           `json:"limit"`
	Size   int           `json:"size"`
	Runs   []schemas.Run `json:"runs"`
}

// ListCompletedRuns fetches the runs of the given project which completed at
// or after `since`, paginating until exhausted. The API returns runs
// newest-first, so paging stops early once a page only contains runs created
// before the window, which bounds the request count.
func (c *Client) ListCompletedRuns(ctx context.Context, projectID int, since time.Time) (runs []schemas.Run, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "testrail:ListCompletedRuns")
	defer span.End()

	span.SetAttributes(attribute.Int("project_id", projectID))

	var (
		offset     int
		sinceEpoch = since.Unix()
	)

	for {
		endpoint := fmt.Sprintf("get_runs/%d&created_after=%d&offset=%d&limit=%d", projectID, sinceEpoch, offset, c.pageSize)

		log.WithFields(log.Fields{
			"project-id": projectID,
			"offset":     offset,
		}).Trace("listing project runs")

		var page runsPage
		if err = c.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		pastWindow := false

		for _, r := range page.Runs {
			if r.CreatedOn < sinceEpoch {
				pastWindow = true
				continue
			}

			if !r.IsCompleted {
				continue
			}

			if r.CompletedOn != nil && *r.CompletedOn < sinceEpoch {
				continue
			}

			runs = append(runs, r)
		}

		if pastWindow || len(page.Runs) < c.pageSize {
			break
		}

		offset += c.pageSize
	}

	return runs, nil
}
