package controller

import (
	"context"
	"net/http"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// HealthCheckHandler creates and returns a health check handler for the controller.
func (c *Controller) HealthCheckHandler(ctx context.Context) (h healthcheck.Handler) {
	// Initialize a new health check handler
	h = healthcheck.NewHandler()

	// If TestRail health checks are enabled in the config, add a readiness check for TestRail connectivity
	if c.Config.TestRail.EnableHealthCheck {
		h.AddReadinessCheck("testrail-reachable", c.TestRail.ReadinessCheck(ctx))
	} else {
		// Otherwise, log a warning indicating that TestRail readiness checks are disabled
		log.WithContext(ctx).
			Warn("TestRail health check has been disabled. Readiness checks won't be operated.")
	}

	// Return the configured health check handler
	return
}

// MetricsHandler serves the /metrics HTTP endpoint to expose Prometheus metrics.
func (c *Controller) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	// Extract the request's context and get the tracing span for observability
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	// Ensure the span is ended when this handler returns
	defer span.End()

	// Create a new Prometheus metrics registry specific to this request/context
	registry := NewRegistry(ctx, c.Catalog)

	// Retrieve all stored metrics from the data store
	metrics, err := c.Store.Metrics(ctx)
	if err != nil {
		// Log an error if metrics retrieval failed
		log.WithContext(ctx).
			WithError(err).
			Error()
	}

	// Export internal metrics such as TestRail and store-related metrics into the registry
	if err := registry.ExportInternalMetrics(ctx, c.TestRail, c.Store); err != nil {
		// Log a warning if exporting internal metrics failed
		log.WithContext(ctx).
			WithError(err).
			Warn()
	}

	// Export the retrieved metrics into the registry for exposure
	registry.ExportMetrics(metrics)

	// Wrap the Prometheus handler with OpenTelemetry instrumentation,
	// and serve the HTTP response with metrics data
	otelhttp.NewHandler(
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			Registry:          registry,
			EnableOpenMetrics: c.Config.Server.Metrics.EnableOpenmetricsEncoding,
		}),
		"/metrics",
	).ServeHTTP(w, r)
}
