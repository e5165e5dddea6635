package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/helvethink/testrail-exporter/internal/cmd"
)

// Run handles the instantiation of the CLI application.
func Run(version string, args []string) {
	err := NewApp(version, time.Now()).Run(args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// NewApp configures the CLI application.
func NewApp(version string, start time.Time) (app *cli.App) {
	app = cli.NewApp()
	app.Name = "testrail-exporter"
	app.Version = version
	app.Usage = "Export metrics about TestRail test runs and results to Prometheus"
	app.EnableBashCompletion = true

	app.Flags = cli.FlagsByName{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			EnvVars: []string{"TESTRAIL_EXPORTER_CONFIG"},
			Usage:   "config `file`",
			Value:   "./config.yml",
		},
		&cli.StringFlag{
			Name:    "redis-url",
			EnvVars: []string{"REDIS_URL"},
			Usage:   "redis `url` for an HA setup (format: redis[s]://[:password@]host[:port][/db-number][?option=value])",
		},
		&cli.StringFlag{
			Name:    "testrail-api-key",
			EnvVars: []string{"TESTRAIL_API_KEY"},
			Usage:   "TestRail API `key`, takes precedence over the value in the config file",
		},
	}

	app.Commands = cli.CommandsByName{
		{
			Name:   "run",
			Usage:  "start the exporter",
			Action: cmd.ExecWrapper(cmd.Run),
		},
		{
			Name:   "validate",
			Usage:  "validate the configuration file",
			Action: cmd.ExecWrapper(cmd.Validate),
		},
	}

	app.Metadata = map[string]interface{}{
		"startTime": start,
	}

	return
}
