package statuses

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"dario.cat/mergo"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// StatusDefinition describes one exported status count, either one of the
// five standard TestRail statuses or a custom one loaded from configuration.
type StatusDefinition struct {
	// StatusID is the TestRail status identifier, informational only.
	StatusID int `json:"status_id,omitempty"`

	// FieldName is the summary count field of the run payload, e.g.
	// "custom_status5_count". It must match the API field naming exactly.
	FieldName string `json:"field_name"`

	// MetricName is the fragment used to build the exported metric family
	// name, e.g. "skipped" exports as "test_run_skipped_count".
	MetricName string `json:"metric_name"`

	// Description ends up as the help string of the metric family.
	Description string `json:"description,omitempty"`

	// Standard marks the built-in statuses, which cannot be overridden.
	Standard bool `json:"-"`
}

// Catalog holds the unified set of standard and custom status definitions
// along with a lookup table from API field name to metric name.
type Catalog struct {
	entries []StatusDefinition
	byField map[string]StatusDefinition
}

// metricNameRegexp constrains metric name fragments so the resulting family
// name remains a valid Prometheus metric name.
var metricNameRegexp = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Standard returns the five built-in status definitions in their canonical
// order.
func Standard() []StatusDefinition {
	return []StatusDefinition{
		{StatusID: 1, FieldName: "passed_count", MetricName: "passed", Description: "Number of passed tests", Standard: true},
		{StatusID: 5, FieldName: "failed_count", MetricName: "failed", Description: "Number of failed tests", Standard: true},
		{StatusID: 4, FieldName: "retest_count", MetricName: "retest", Description: "Number of tests to retest", Standard: true},
		{StatusID: 3, FieldName: "untested_count", MetricName: "untested", Description: "Number of untested tests", Standard: true},
		{StatusID: 2, FieldName: "blocked_count", MetricName: "blocked", Description: "Number of blocked tests", Standard: true},
	}
}

// customStatusFile mirrors the on-disk JSON configuration format.
type customStatusFile struct {
	CustomStatuses []StatusDefinition `json:"custom_statuses"`
}

// Load reads the optional custom status configuration file and returns the
// unified catalog. A missing file is not an error, the catalog then only
// contains the standard statuses. Malformed or colliding definitions are
// configuration errors which must prevent the process from starting.
func Load(configPath string) (c Catalog, err error) {
	c.entries = Standard()
	c.byField = make(map[string]StatusDefinition)

	metricNames := make(map[string]bool)

	for _, sd := range c.entries {
		c.byField[sd.FieldName] = sd
		metricNames[sd.MetricName] = true
	}

	if configPath == "" {
		return
	}

	var fileBytes []byte

	fileBytes, err = os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", configPath).
				Debug("custom status config file not found, using standard statuses only")

			return c, nil
		}

		return c, errors.Wrap(err, "reading custom status config file")
	}

	var f customStatusFile
	if err = json.Unmarshal(fileBytes, &f); err != nil {
		return c, errors.Wrapf(err, "parsing custom status config file %s", configPath)
	}

	if len(f.CustomStatuses) == 0 {
		log.WithField("path", configPath).
			Warn("custom status config file contains no custom_statuses")

		return c, nil
	}

	for _, sd := range f.CustomStatuses {
		if sd.FieldName == "" {
			return c, fmt.Errorf("custom status entry is missing 'field_name' (%+v)", sd)
		}

		if sd.MetricName == "" {
			return c, fmt.Errorf("custom status entry '%s' is missing 'metric_name'", sd.FieldName)
		}

		if !metricNameRegexp.MatchString(sd.MetricName) {
			return c, fmt.Errorf("custom status entry '%s' has an invalid metric_name '%s'", sd.FieldName, sd.MetricName)
		}

		if metricNames[sd.MetricName] {
			return c, fmt.Errorf("metric_name '%s' of custom status entry '%s' collides with an existing status", sd.MetricName, sd.FieldName)
		}

		if _, exists := c.byField[sd.FieldName]; exists {
			return c, fmt.Errorf("field_name '%s' is defined more than once", sd.FieldName)
		}

		// Backfill the optional attributes of the entry
		if err = mergo.Merge(&sd, StatusDefinition{
			Description: fmt.Sprintf("Number of %s tests", sd.MetricName),
		}); err != nil {
			return c, err
		}

		c.entries = append(c.entries, sd)
		c.byField[sd.FieldName] = sd
		metricNames[sd.MetricName] = true
	}

	log.WithFields(log.Fields{
		"path":            configPath,
		"custom-statuses": len(c.entries) - len(Standard()),
	}).Info("loaded custom status configuration")

	return c, nil
}

// Entries returns the ordered status definitions, standard statuses first,
// custom statuses in file order.
func (c Catalog) Entries() []StatusDefinition {
	return c.entries
}

// CustomEntries returns only the configuration supplied status definitions.
func (c Catalog) CustomEntries() (custom []StatusDefinition) {
	for _, sd := range c.entries {
		if !sd.Standard {
			custom = append(custom, sd)
		}
	}

	return
}

// Resolve returns the metric name mapped to the given API field name, or
// false when the field is not part of the catalog.
func (c Catalog) Resolve(fieldName string) (string, bool) {
	sd, ok := c.byField[fieldName]
	if !ok {
		return "", false
	}

	return sd.MetricName, true
}
