package testrail

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/paulbellamy/ratecounter"
	"go.opentelemetry.io/otel"

	"github.com/helvethink/testrail-exporter/pkg/ratelimit"
)

const (
	userAgent  = "testrail-exporter"
	tracerName = "testrail-exporter"

	// apiPath is the TestRail v2 API prefix. Endpoints and their parameters
	// are appended to it ampersand-separated, the way the API expects them.
	apiPath = "/index.php?/api/v2/"

	// defaultPageSize is the number of records requested per page. 250 is
	// the maximum the API serves per request.
	defaultPageSize = 250

	// requestTimeout bounds a single API call. TestRail can be slow to
	// assemble large result sets.
	requestTimeout = 300 * time.Second
)

// RemoteError describes a failed call against the TestRail API. It carries
// the endpoint and HTTP status so cycle logs are actionable without blind
// retries.
type RemoteError struct {
	Endpoint   string // Endpoint is the API endpoint the call targeted.
	StatusCode int    // StatusCode is the HTTP status, 0 for transport and decoding failures.
	Err        error  // Err is the underlying error, may be nil for plain HTTP errors.
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("testrail: %s: %v", e.Endpoint, e.Err)
	}

	return fmt.Sprintf("testrail: %s: HTTP %d", e.Endpoint, e.StatusCode)
}

// Unwrap returns the underlying error.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Client wraps the TestRail HTTP API, adding basic auth, rate limiting,
// request counting and readiness checks. Pagination is hidden behind the
// List* operations.
type Client struct {
	// Readiness contains configuration to check if the TestRail instance
	// is responsive and healthy via an HTTP endpoint.
	Readiness struct {
		URL        string       // URL for readiness checks
		HTTPClient *http.Client // HTTP client used to perform readiness requests
	}

	RateLimiter     ratelimit.Limiter        // RateLimiter controls the rate of API requests to avoid hitting TestRail rate limits.
	RateCounter     *ratecounter.RateCounter // RateCounter tracks the number of requests over time for monitoring.
	RequestsCounter atomic.Uint64            // RequestsCounter is an atomic counter for total requests sent.

	baseURL          string
	username         string
	apiKey           string
	userAgentVersion string
	pageSize         int
	httpClient       *http.Client
}

// ClientConfig holds configuration options needed to instantiate a new Client.
type ClientConfig struct {
	URL              string            // Base URL of the TestRail instance
	Username         string            // Account used for API authentication
	APIKey           string            // API key paired with the username
	UserAgentVersion string            // User agent string for client identification
	DisableTLSVerify bool              // Whether to skip TLS verification (e.g., for self-signed certs)
	ReadinessURL     string            // URL used for readiness checks
	RateLimiter      ratelimit.Limiter // Rate limiter implementation, local or Redis backed
}

// NewHTTPClient creates an HTTP client with optional TLS verification disabling.
// It clones the default transport to preserve proxy settings and other defaults,
// then modifies TLS configuration as requested.
func NewHTTPClient(disableTLSVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: disableTLSVerify}

	return &http.Client{
		Transport: transport,
	}
}

// NewClient creates and returns a new Client instance configured with
// the provided ClientConfig.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("testrail URL is not configured")
	}

	httpClient := NewHTTPClient(cfg.DisableTLSVerify)
	httpClient.Timeout = requestTimeout

	readinessURL := cfg.ReadinessURL
	if readinessURL == "" {
		readinessURL = cfg.URL
	}

	// Readiness probes use a much shorter timeout than data requests
	readinessCheckHTTPClient := NewHTTPClient(cfg.DisableTLSVerify)
	readinessCheckHTTPClient.Timeout = 5 * time.Second

	c := &Client{
		RateLimiter:      cfg.RateLimiter,
		RateCounter:      ratecounter.NewRateCounter(time.Second),
		baseURL:          strings.TrimSuffix(cfg.URL, "/"),
		username:         cfg.Username,
		apiKey:           cfg.APIKey,
		userAgentVersion: cfg.UserAgentVersion,
		pageSize:         defaultPageSize,
		httpClient:       httpClient,
	}

	c.Readiness.URL = readinessURL
	c.Readiness.HTTPClient = readinessCheckHTTPClient

	return c, nil
}

// ReadinessCheck returns a healthcheck.Check function that performs
// an HTTP GET request to the configured readiness URL to verify if
// the TestRail instance is ready to accept requests.
func (c *Client) ReadinessCheck(ctx context.Context) healthcheck.Check {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "testrail:ReadinessCheck")
	defer span.End()

	return func() error {
		if c.Readiness.HTTPClient == nil {
			return fmt.Errorf("readiness http client not configured")
		}

		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			c.Readiness.URL,
			nil,
		)
		if err != nil {
			return err
		}

		resp, err := c.Readiness.HTTPClient.Do(req)
		if err != nil {
			return err
		}

		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP error: %d", resp.StatusCode)
		}

		return nil
	}
}

// rateLimit enforces rate limiting by blocking until a token
// is available from the configured RateLimiter. It also increments
// internal counters for monitoring requests made.
func (c *Client) rateLimit(ctx context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "testrail:rateLimit")
	defer span.End()

	if c.RateLimiter != nil {
		ratelimit.Take(ctx, c.RateLimiter)
	}

	// Increment the rate counter for monitoring the number of requests per second
	c.RateCounter.Incr(1)

	// Increment the atomic requests counter (total requests made)
	c.RequestsCounter.Add(1)
}

// get performs an authenticated GET against the given endpoint (path and
// parameters, without the API prefix) and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	c.rateLimit(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPath+endpoint, nil)
	if err != nil {
		return &RemoteError{Endpoint: endpoint, Err: err}
	}

	req.SetBasicAuth(c.username, c.apiKey)
	req.Header.Set("User-Agent", fmt.Sprintf("%s-%s", userAgent, c.userAgentVersion))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RemoteError{Endpoint: endpoint, Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain the body so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)

		return &RemoteError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: err}
	}

	return nil
}
