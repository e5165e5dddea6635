package testrail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.openly.dev/pointy"

	"github.com/helvethink/testrail-exporter/pkg/schemas"
)

// getMockedClient returns a client pointed at a test HTTP server together
// with the mux used to register endpoint handlers on it.
func getMockedClient(t *testing.T) (*http.ServeMux, *Client) {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{
		URL:              srv.URL,
		Username:         "exporter@example.com",
		APIKey:           "secret",
		UserAgentVersion: "0.0.0",
	})
	require.NoError(t, err)

	return mux, c
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)
}

func TestClientAuthenticationHeaders(t *testing.T) {
	mux, c := getMockedClient(t)

	mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		username, apiKey, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "exporter@example.com", username)
		assert.Equal(t, "secret", apiKey)
		assert.Equal(t, "testrail-exporter-0.0.0", r.Header.Get("User-Agent"))

		fmt.Fprint(w, `{"offset": 0, "limit": 250, "size": 0, "runs": []}`)
	})

	runs, err := c.ListCompletedRuns(context.Background(), 1, time.Unix(0, 0))
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Equal(t, uint64(1), c.RequestsCounter.Load())
}

func TestListCompletedRunsFiltering(t *testing.T) {
	mux, c := getMockedClient(t)

	since := time.Unix(1000, 0)

	mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.RawQuery, "get_runs/1"))
		assert.True(t, strings.Contains(r.URL.RawQuery, "created_after=1000"))

		page := runsPage{
			Size: 4,
			Runs: []schemas.Run{
				{ID: 1, Name: "in window", IsCompleted: true, CreatedOn: 2000, CompletedOn: pointy.Int64(3000)},
				{ID: 2, Name: "still running", IsCompleted: false, CreatedOn: 2000},
				{ID: 3, Name: "completed before window", IsCompleted: true, CreatedOn: 1500, CompletedOn: pointy.Int64(500)},
				{ID: 4, Name: "created before window", IsCompleted: true, CreatedOn: 500},
			},
		}

		require.NoError(t, json.NewEncoder(w).Encode(page))
	})

	runs, err := c.ListCompletedRuns(context.Background(), 1, since)
	require.NoError(t, err)

	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].ID)
}

func TestListCompletedRunsPagination(t *testing.T) {
	mux, c := getMockedClient(t)

	requests := 0

	mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		requests++

		page := runsPage{}

		switch {
		case strings.Contains(r.URL.RawQuery, "offset=0"):
			for i := 1; i <= defaultPageSize; i++ {
				page.Runs = append(page.Runs, schemas.Run{ID: i, IsCompleted: true, CreatedOn: 2000})
			}
		case strings.Contains(r.URL.RawQuery, fmt.Sprintf("offset=%d", defaultPageSize)):
			page.Runs = []schemas.Run{{ID: defaultPageSize + 1, IsCompleted: true, CreatedOn: 2000}}
		default:
			t.Errorf("unexpected request: %s", r.URL.RawQuery)
		}

		require.NoError(t, json.NewEncoder(w).Encode(page))
	})

	runs, err := c.ListCompletedRuns(context.Background(), 1, time.Unix(1000, 0))
	require.NoError(t, err)

	assert.Equal(t, 2, requests)
	assert.Len(t, runs, defaultPageSize+1)
}

func TestListResults(t *testing.T) {
	mux, c := getMockedClient(t)

	mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.RawQuery, "get_results_for_run/1234"))

		fmt.Fprint(w, `{"offset": 0, "limit": 250, "size": 2, "results": [
  {"id": 1, "test_id": 11, "status_id": 1, "created_on": 2000, "comment": "all good"},
  {"id": 2, "test_id": 12, "status_id": 5, "created_on": 2100, "comment": ""}
]}`)
	})

	results, err := c.ListResults(context.Background(), 1234)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, 11, results[0].TestID)
	assert.Equal(t, "all good", results[0].Comment)
	assert.Equal(t, 5, results[1].StatusID)
}

func TestListTestTitles(t *testing.T) {
	mux, c := getMockedClient(t)

	mux.HandleFunc("/index.php", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.RawQuery, "get_tests/1234"))

		fmt.Fprint(w, `{"offset": 0, "limit": 250, "size": 2, "tests": [
  {"id": 11, "title": "Login works"},
  {"id": 12, "title": "Logout works"}
]}`)
	})

	titles, err := c.ListTestTitles(context.Background(), 1234)
	require.NoError(t, err)

	assert.Equal(t, map[int]string{
		11: "Login works",
		12: "Logout works",
	}, titles)
}

func TestGetRemoteErrorOnHTTPFailure(t *testing.T) {
	mux, c := getMockedClient(t)

	mux.HandleFunc("/index.php", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.ListResults(context.Background(), 1234)
	require.Error(t, err)

	remoteErr := &RemoteError{}
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusInternalServerError, remoteErr.StatusCode)
}

func TestGetRemoteErrorOnMalformedPayload(t *testing.T) {
	mux, c := getMockedClient(t)

	mux.HandleFunc("/index.php", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results": [`)
	})

	_, err := c.ListResults(context.Background(), 1234)
	require.Error(t, err)

	remoteErr := &RemoteError{}
	assert.ErrorAs(t, err, &remoteErr)
}

func TestReadinessCheck(t *testing.T) {
	mux, c := getMockedClient(t)

	healthy := true

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	check := c.ReadinessCheck(context.Background())
	assert.NoError(t, check())

	healthy = false
	assert.Error(t, check())
}
