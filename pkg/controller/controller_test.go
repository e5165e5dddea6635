package controller

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helvethink/testrail-exporter/pkg/config"
	"github.com/helvethink/testrail-exporter/pkg/statuses"
	"github.com/helvethink/testrail-exporter/pkg/store"
	"github.com/helvethink/testrail-exporter/pkg/testrail"
)

// newTestController returns a controller wired to a local store and a mocked
// TestRail backend, together with the mux used to register API handlers on it.
func newTestController(t *testing.T, cfg config.Config) (*http.ServeMux, Controller) {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg.TestRail.URL = srv.URL

	tr, err := testrail.NewClient(testrail.ClientConfig{
		URL:              srv.URL,
		Username:         "exporter@example.com",
		APIKey:           "secret",
		UserAgentVersion: "0.0.0",
	})
	require.NoError(t, err)

	catalog, err := statuses.Load("")
	require.NoError(t, err)

	return mux, Controller{
		Config:   cfg,
		TestRail: tr,
		Store:    store.NewLocalStore(),
		Catalog:  catalog,
	}
}
