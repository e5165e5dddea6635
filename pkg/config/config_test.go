package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidConfig(t *testing.T) {
	cfg, err := Parse(FormatYAML, []byte(`
log:
  level: debug
  format: json

server:
  listen_address: :1025
  enable_pprof: true

testrail:
  url: https://testrail.example.com
  username: exporter@example.com
  api_key: secret

redis:
  url: redis://popopo:1337

project:
  id: 42
  lookback_days: 14

schedule:
  on_init: false
  hours: "6,18"

garbage_collect:
  metrics:
    on_init: true
    scheduled: false
    interval_seconds: 1800

custom_statuses:
  config_path: /etc/testrail-exporter/custom_statuses.json
`))

	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":1025", cfg.Server.ListenAddress)
	assert.True(t, cfg.Server.EnablePprof)
	assert.Equal(t, "https://testrail.example.com", cfg.TestRail.URL)
	assert.Equal(t, "exporter@example.com", cfg.TestRail.Username)
	assert.Equal(t, "secret", cfg.TestRail.APIKey)
	assert.Equal(t, "redis://popopo:1337", cfg.Redis.URL)
	assert.Equal(t, 42, cfg.Project.ID)
	assert.Equal(t, 14, cfg.Project.LookbackDays)
	assert.False(t, cfg.Schedule.OnInit)
	assert.Equal(t, "6,18", cfg.Schedule.Hours)
	assert.True(t, cfg.GarbageCollect.Metrics.OnInit)
	assert.False(t, cfg.GarbageCollect.Metrics.Scheduled)
	assert.Equal(t, 1800, cfg.GarbageCollect.Metrics.IntervalSeconds)
	assert.Equal(t, "/etc/testrail-exporter/custom_statuses.json", cfg.CustomStatuses.ConfigPath)

	assert.NoError(t, cfg.Validate())
}

func TestParseDefaultsApplied(t *testing.T) {
	cfg, err := Parse(FormatYAML, []byte(`
testrail:
  url: https://testrail.example.com
  username: exporter@example.com
  api_key: secret

project:
  id: 1
`))

	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, ":9001", cfg.Server.ListenAddress)
	assert.True(t, cfg.Server.Metrics.Enabled)
	assert.True(t, cfg.TestRail.EnableHealthCheck)
	assert.True(t, cfg.TestRail.EnableTLSVerify)
	assert.Equal(t, 5, cfg.TestRail.MaximumRequestsPerSecond)
	assert.Equal(t, 5, cfg.TestRail.BurstableRequestsPerSecond)
	assert.Equal(t, 120, cfg.TestRail.MaximumJobsQueueSize)
	assert.Equal(t, 7, cfg.Project.LookbackDays)
	assert.True(t, cfg.Schedule.OnInit)
	assert.Equal(t, "0,12", cfg.Schedule.Hours)
	assert.False(t, cfg.GarbageCollect.Metrics.OnInit)
	assert.True(t, cfg.GarbageCollect.Metrics.Scheduled)
	assert.Equal(t, 600, cfg.GarbageCollect.Metrics.IntervalSeconds)
	assert.Equal(t, "custom_statuses.json", cfg.CustomStatuses.ConfigPath)

	assert.NoError(t, cfg.Validate())
}

func TestValidateMissingTestRailSettings(t *testing.T) {
	cfg, err := Parse(FormatYAML, []byte(`
project:
  id: 1
`))

	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestValidateInvalidScheduleHours(t *testing.T) {
	cfg, err := Parse(FormatYAML, []byte(`
testrail:
  url: https://testrail.example.com
  username: exporter@example.com
  api_key: secret

project:
  id: 1

schedule:
  hours: "0,26"
`))

	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestValidateInvalidLogLevel(t *testing.T) {
	cfg, err := Parse(FormatYAML, []byte(`
log:
  level: blurp

testrail:
  url: https://testrail.example.com
  username: exporter@example.com
  api_key: secret

project:
  id: 1
`))

	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse(FormatYAML, []byte(`[`))
	assert.Error(t, err)
}

func TestGetTypeFromFileExtension(t *testing.T) {
	for _, filename := range []string{"config.yml", "config.yaml", "/etc/exporter/config.yaml"} {
		f, err := GetTypeFromFileExtension(filename)
		assert.NoError(t, err)
		assert.Equal(t, FormatYAML, f)
	}

	_, err := GetTypeFromFileExtension("config.json")
	assert.Error(t, err)
}

func TestToYAMLMasksCredentials(t *testing.T) {
	cfg, err := Parse(FormatYAML, []byte(`
testrail:
  url: https://testrail.example.com
  username: exporter@example.com
  api_key: super-secret

project:
  id: 1
`))

	require.NoError(t, err)

	out := cfg.ToYAML()
	assert.False(t, strings.Contains(out, "super-secret"))
	assert.True(t, strings.Contains(out, "*******"))
}

func TestSchedulerConfigLog(t *testing.T) {
	fields := SchedulerConfig{OnInit: true, Scheduled: true, IntervalSeconds: 300}.Log()
	assert.Equal(t, "yes", fields["on-init"])
	assert.Equal(t, "every 300s", fields["scheduled"])

	fields = SchedulerConfig{}.Log()
	assert.Equal(t, "no", fields["on-init"])
	assert.Equal(t, "no", fields["scheduled"])
}
