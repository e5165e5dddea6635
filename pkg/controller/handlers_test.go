package controller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helvethink/testrail-exporter/pkg/config"
	"github.com/helvethink/testrail-exporter/pkg/schemas"
)

func TestMetricsHandler(t *testing.T) {
	ctx := context.Background()

	cfg := config.Config{}
	_, c := newTestController(t, cfg)

	require.NoError(t, c.Store.SetMetric(ctx, schemas.Metric{
		Kind:   schemas.MetricKindRunPassedCount,
		Labels: prometheus.Labels{"run_id": "10", "created_date": "2023-01-01 00:00:00"},
		Value:  3,
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	c.MetricsHandler(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := w.Body.String()
	assert.Contains(t, body, `test_run_passed_count{created_date="2023-01-01 00:00:00",run_id="10"} 3`)
	assert.Contains(t, body, "tre_runs_count")
	assert.Contains(t, body, "tre_currently_queued_tasks_count")
}

func TestHealthCheckHandler(t *testing.T) {
	ctx := context.Background()

	cfg := config.Config{}
	cfg.TestRail.EnableHealthCheck = true

	mux, c := newTestController(t, cfg)

	healthy := true

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			fmt.Fprint(w, "ok")
		}
	})

	h := c.HealthCheckHandler(ctx)

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)

	healthy = false

	w = httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Result().StatusCode)

	// Liveness does not depend on the upstream instance
	w = httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
}
