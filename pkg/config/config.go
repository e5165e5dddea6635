package config

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// validate is a global validator instance used to validate struct fields based on tags.
var validate *validator.Validate

// Config holds all the configuration parameters necessary for properly configuring the exporter.
type Config struct {
	Log            Log            `yaml:"log"`             // Log holds configuration related to logging for the exporter.
	OpenTelemetry  OpenTelemetry  `yaml:"opentelemetry"`   // OpenTelemetry contains configuration settings for OpenTelemetry integration.
	Server         Server         `yaml:"server"`          // Server holds configuration related to the HTTP server settings.
	TestRail       TestRail       `yaml:"testrail"`        // TestRail contains TestRail-specific configuration settings.
	Redis          Redis          `yaml:"redis"`           // Redis holds configuration parameters for connecting to Redis.
	Project        Project        `yaml:"project"`         // Project describes the TestRail project being collected.
	Schedule       Schedule       `yaml:"schedule"`        // Schedule configures when collection cycles are triggered.
	GarbageCollect GarbageCollect `yaml:"garbage_collect"` // GarbageCollect contains configuration for stale series cleanup.
	CustomStatuses CustomStatuses `yaml:"custom_statuses"` // CustomStatuses points at the custom status definition file.
}

// Log holds configuration settings related to runtime logging.
type Log struct {
	// Level sets the logging verbosity level.
	// Valid values: trace, debug, info, warning, error, fatal, panic.
	// Defaults to "info".
	Level string `default:"info" validate:"required,oneof=trace debug info warning error fatal panic"`

	// Format sets the output format of the logs.
	// Valid values: "text" or "json".
	// Defaults to "text".
	Format string `default:"text" validate:"oneof=text json"`
}

// OpenTelemetry holds configuration related to OpenTelemetry integration.
type OpenTelemetry struct {
	// GRPCEndpoint is the gRPC address of the OpenTelemetry collector to send traces to.
	GRPCEndpoint string `yaml:"grpc_endpoint"`
}

// Server holds the configuration for the HTTP server.
type Server struct {
	// ListenAddress specifies the address and port the server will bind to and listen on.
	// Default is ":9001" (all interfaces on port 9001).
	ListenAddress string        `default:":9001" yaml:"listen_address"`
	EnablePprof   bool          `default:"false" yaml:"enable_pprof"` // EnablePprof enables profiling endpoints for debugging performance issues.
	Metrics       ServerMetrics `yaml:"metrics"`                      // Metrics contains configuration related to exposing Prometheus metrics.
}

// ServerMetrics holds configuration for the metrics HTTP endpoint.
type ServerMetrics struct {
	// EnableOpenmetricsEncoding enables OpenMetrics content encoding in the Prometheus HTTP handler.
	EnableOpenmetricsEncoding bool `default:"false" yaml:"enable_openmetrics_encoding"`
	Enabled                   bool `default:"true" yaml:"enabled"` // Enabled controls whether the /metrics endpoint is exposed.
}

// TestRail holds the configuration needed to connect to a TestRail instance.
type TestRail struct {
	// URL of the TestRail instance, e.g. https://yourcompany.testrail.io.
	URL string `validate:"required,url" yaml:"url"`

	Username string `validate:"required" yaml:"username"` // Username is the TestRail account used for API authentication.
	APIKey   string `validate:"required" yaml:"api_key"`  // APIKey is the API key paired with the username.

	EnableHealthCheck          bool `default:"true" yaml:"enable_health_check"`                         // EnableHealthCheck toggles the readiness probe against the TestRail instance.
	EnableTLSVerify            bool `default:"true" yaml:"enable_tls_verify"`                           // EnableTLSVerify toggles TLS certificate verification for HTTPS connections.
	MaximumRequestsPerSecond   int  `default:"5" validate:"gte=1" yaml:"maximum_requests_per_second"`   // MaximumRequestsPerSecond limits the number of TestRail API requests per second.
	BurstableRequestsPerSecond int  `default:"5" validate:"gte=1" yaml:"burstable_requests_per_second"` // BurstableRequestsPerSecond allows short bursts above the normal max request rate.

	// MaximumJobsQueueSize limits the number of tasks queued internally
	// before dropping new ones.
	MaximumJobsQueueSize int `default:"120" validate:"gte=10" yaml:"maximum_jobs_queue_size"`
}

// Redis holds the configuration for connecting to a Redis instance.
type Redis struct {
	// URL is the connection string used to connect to the Redis server.
	// Format example: redis[s]://[:password@]host[:port][/db-number][?option=value]
	URL string `yaml:"url"`
}

// Project describes which TestRail project is collected and how far back
// completed runs are considered.
type Project struct {
	// ID is the numeric TestRail project identifier.
	ID int `validate:"gte=1" yaml:"id"`

	// LookbackDays is the trailing window, in days, within which completed
	// runs are considered for a collection cycle.
	LookbackDays int `default:"7" validate:"gte=0" yaml:"lookback_days"`
}

// Schedule configures the collection cycle triggers.
type Schedule struct {
	// OnInit determines whether a cycle runs immediately at startup.
	OnInit bool `default:"true" yaml:"on_init"`

	// Hours is the comma-separated list of UTC hours (0-23) at which a cycle
	// is triggered daily, e.g. "0,12".
	Hours string `default:"0,12" yaml:"hours"`
}

// GarbageCollect holds configuration for periodic cleanup tasks.
type GarbageCollect struct {
	// Metrics configures cleanup behavior for metric series whose run fell
	// out of the lookback window.
	Metrics struct {
		OnInit          bool `default:"false" yaml:"on_init"`
		Scheduled       bool `default:"true" yaml:"scheduled"`
		IntervalSeconds int  `default:"600" validate:"gte=1" yaml:"interval_seconds"` // 10 minutes
	} `yaml:"metrics"`
}

// CustomStatuses points at the optional JSON file defining custom status
// counts to export in addition to the standard five.
type CustomStatuses struct {
	// ConfigPath is the path of the JSON definition file. An absent file is
	// not an error, only the standard statuses are exported then.
	ConfigPath string `default:"custom_statuses.json" yaml:"config_path"`
}

// UnmarshalYAML implements custom YAML unmarshaling logic for the Config struct,
// ensuring the default values are applied before decoding the document.
func (c *Config) UnmarshalYAML(v *yaml.Node) (err error) {
	type localConfig struct {
		Log            Log            `yaml:"log"`
		OpenTelemetry  OpenTelemetry  `yaml:"opentelemetry"`
		Server         Server         `yaml:"server"`
		TestRail       TestRail       `yaml:"testrail"`
		Redis          Redis          `yaml:"redis"`
		Project        Project        `yaml:"project"`
		Schedule       Schedule       `yaml:"schedule"`
		GarbageCollect GarbageCollect `yaml:"garbage_collect"`
		CustomStatuses CustomStatuses `yaml:"custom_statuses"`
	}

	// Initialize the local config with default values
	_cfg := localConfig{}
	defaults.MustSet(&_cfg)

	// Decode the input YAML into the local config struct
	if err = v.Decode(&_cfg); err != nil {
		return
	}

	c.Log = _cfg.Log
	c.OpenTelemetry = _cfg.OpenTelemetry
	c.Server = _cfg.Server
	c.TestRail = _cfg.TestRail
	c.Redis = _cfg.Redis
	c.Project = _cfg.Project
	c.Schedule = _cfg.Schedule
	c.GarbageCollect = _cfg.GarbageCollect
	c.CustomStatuses = _cfg.CustomStatuses

	return
}

// ToYAML serializes the Config object into a YAML formatted string.
// Before serialization, it masks sensitive data to avoid leaking secrets.
func (c Config) ToYAML() string {
	c.TestRail.APIKey = "*******"

	b, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}

	return string(b)
}

// Validate checks if the Config struct's fields are valid according to
// the validation rules defined via struct tags and custom validators.
// It returns an error if any validation rule fails.
func (c Config) Validate() error {
	if validate == nil {
		validate = validator.New()
	}

	if err := validate.Struct(c); err != nil {
		return err
	}

	// The schedule string cannot be expressed as a struct tag rule
	if _, err := ParseScheduleHours(c.Schedule.Hours); err != nil {
		return fmt.Errorf("invalid schedule.hours '%s': %w", c.Schedule.Hours, err)
	}

	return nil
}

// SchedulerConfig defines common scheduling behavior for background tasks.
type SchedulerConfig struct {
	OnInit          bool // OnInit determines whether the task should run immediately at startup.
	Scheduled       bool // Scheduled determines whether the task should run on a recurring schedule.
	IntervalSeconds int  // IntervalSeconds specifies how often (in seconds) the task should run when scheduled.
}

// Log returns a structured representation of the scheduler configuration
// to help display it in logs for the end user.
func (sc SchedulerConfig) Log() log.Fields {
	onInit, scheduled := "no", "no"

	if sc.OnInit {
		onInit = "yes"
	}

	if sc.Scheduled {
		scheduled = fmt.Sprintf("every %vs", sc.IntervalSeconds)
	}

	return log.Fields{
		"on-init":   onInit,
		"scheduled": scheduled,
	}
}

// New returns a new Config instance with default parameters set.
func New() (c Config) {
	defaults.MustSet(&c)
	return
}
