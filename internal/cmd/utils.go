package cmd

import (
	"fmt"
	stdlibLog "log"
	"os"
	"time"

	"github.com/go-logr/stdr"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
	"github.com/urfave/cli/v2"
	"github.com/vmihailenco/taskq/v4"

	logger "github.com/helvethink/testrail-exporter/internal/logging"
	"github.com/helvethink/testrail-exporter/pkg/config"
)

var start time.Time

// configure loads and validates configuration from CLI context, sets up logging, and prints scheduler settings.
// It returns a populated config object or an error.
func configure(ctx *cli.Context) (cfg config.Config, err error) {
	// Retrieve and store application start time from CLI metadata
	start = ctx.App.Metadata["startTime"].(time.Time)

	// Ensure "config" CLI flag is defined
	assertStringVariableDefined(ctx, "config")

	// Parse the configuration file from the given path
	cfg, err = config.ParseFile(ctx.String("config"))
	if err != nil {
		return
	}

	// Override config parameters with any CLI-provided values
	configCliOverrides(ctx, &cfg)

	// Validate the final configuration structure
	if err = cfg.Validate(); err != nil {
		return
	}

	// Initialize logger with the config-defined level and format
	if err = logger.Configure(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}); err != nil {
		return
	}

	// Add OpenTelemetry logging hook to integrate tracing into logs
	log.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
		log.WarnLevel,
	)))

	// Redirect task queue logs to the main log system using standard library compatibility
	taskq.SetLogger(stdr.New(stdlibLog.New(log.StandardLogger().WriterLevel(log.WarnLevel), "taskq", 0)))

	// Log general TestRail configuration
	log.WithFields(
		log.Fields{
			"testrail-endpoint":   cfg.TestRail.URL,
			"testrail-rate-limit": fmt.Sprintf("%drps", cfg.TestRail.MaximumRequestsPerSecond),
			"project-id":          cfg.Project.ID,
			"lookback-days":       cfg.Project.LookbackDays,
		},
	).Info("configured")

	// Log collection scheduling settings
	log.WithFields(log.Fields{
		"on_init": cfg.Schedule.OnInit,
		"hours":   cfg.Schedule.Hours,
	}).Info("collect project")

	// Log garbage collection scheduling settings
	log.WithFields(config.SchedulerConfig(cfg.GarbageCollect.Metrics).Log()).Info("garbage collect metrics")

	return
}

// exit logs the execution time and error (if any), then returns a CLI exit code.
func exit(exitCode int, err error) cli.ExitCoder {
	defer log.WithFields(
		log.Fields{
			"execution-time": time.Since(start), // nolint: govet
		},
	).Debug("exited..") // Log execution time when exiting

	if err != nil {
		log.WithError(err).Error() // Log error if present
	}

	return cli.Exit("", exitCode)
}

// ExecWrapper gracefully logs and exits our `run` functions.
// It wraps a function returning (int, error) into a `cli.ActionFunc` compatible with urfave/cli.
func ExecWrapper(f func(ctx *cli.Context) (int, error)) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		return exit(f(ctx)) // Handles logging and clean exit based on result
	}
}

// configCliOverrides overrides configuration fields with command-line flags if present.
func configCliOverrides(ctx *cli.Context, cfg *config.Config) {
	// Override TestRail API key if provided via CLI
	if ctx.String("testrail-api-key") != "" {
		cfg.TestRail.APIKey = ctx.String("testrail-api-key")
	}

	// Override Redis URL if provided
	if ctx.String("redis-url") != "" {
		cfg.Redis.URL = ctx.String("redis-url")
	}
}

// assertStringVariableDefined ensures a required string flag is set.
// If not, it prints help and exits the program.
func assertStringVariableDefined(ctx *cli.Context, k string) {
	if len(ctx.String(k)) == 0 {
		_ = cli.ShowAppHelp(ctx) // Show CLI help to guide the user

		log.Errorf("'--%s' must be set!", k)
		os.Exit(2) // Exit with code 2 (convention for incorrect usage)
	}
}
