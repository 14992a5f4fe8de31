// Package config loads run settings from defaults, an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"cloud.google.com/go/civil"
	"gopkg.in/yaml.v3"

	"github.com/dvloznov/customer-segmentation/internal/domain"
	"github.com/dvloznov/customer-segmentation/internal/export"
)

// DefaultPath is read when no config file is named explicitly.
const DefaultPath = "rfm.yaml"

// Config holds everything a segmentation run needs.
type Config struct {
	Input    InputConfig    `yaml:"input"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Export   ExportConfig   `yaml:"export"`
	Sinks    SinksConfig    `yaml:"sinks"`
	LogLevel string         `yaml:"log_level"`
}

// InputConfig names the dataset and, for workbooks, the sheet to read.
type InputConfig struct {
	Path  string `yaml:"path"`
	Sheet string `yaml:"sheet"`
}

// AnalysisConfig tunes cleaning and aggregation.
type AnalysisConfig struct {
	// ReferenceDate is YYYY-MM-DD; empty derives it from the data.
	ReferenceDate      string `yaml:"reference_date"`
	CancellationMarker string `yaml:"cancellation_marker"`
}

// ExportConfig selects the segment to export. An empty Path writes
// <Segment>.csv.
type ExportConfig struct {
	Segment string `yaml:"segment"`
	Path    string `yaml:"path"`
}

// SinksConfig lists the optional result sinks.
type SinksConfig struct {
	BigQuery BigQueryConfig `yaml:"bigquery"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

// BigQueryConfig is the table segment rows are inserted into.
type BigQueryConfig struct {
	Project string `yaml:"project"`
	Dataset string `yaml:"dataset"`
	Table   string `yaml:"table"`
}

// Enabled reports whether segments should be written to BigQuery.
func (c BigQueryConfig) Enabled() bool { return c.Project != "" }

// PostgresConfig points at the database segment assignments are upserted into.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// Enabled reports whether segments should be written to Postgres.
func (c PostgresConfig) Enabled() bool { return c.DSN != "" }

// KafkaConfig is the topic one message per customer is produced to.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether segments should be produced to Kafka.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Path:  "datasets/online_retail_II.xlsx",
			Sheet: "Year 2009-2010",
		},
		Analysis: AnalysisConfig{
			CancellationMarker: "C",
		},
		Export: ExportConfig{
			Segment: string(domain.SegmentNeedAttention),
		},
		Sinks: SinksConfig{
			BigQuery: BigQueryConfig{
				Dataset: "rfm",
				Table:   "customer_segments",
			},
			Kafka: KafkaConfig{
				Topic: "rfm-segments",
			},
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment, in that order. An empty path reads DefaultPath if it
// exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	file := path
	if file == "" {
		file = DefaultPath
	}
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parsing %s: %w", file, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == "":
		// no config file, defaults apply
	default:
		return nil, fmt.Errorf("config.Load: reading %s: %w", file, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RFM_INPUT"); v != "" {
		cfg.Input.Path = v
	}
	if v := os.Getenv("RFM_SHEET"); v != "" {
		cfg.Input.Sheet = v
	}
	if v := os.Getenv("RFM_REFERENCE_DATE"); v != "" {
		cfg.Analysis.ReferenceDate = v
	}
	if v := os.Getenv("RFM_SEGMENT"); v != "" {
		cfg.Export.Segment = v
	}
	if v := os.Getenv("RFM_OUTPUT"); v != "" {
		cfg.Export.Path = v
	}
	if v := os.Getenv("BQ_PROJECT"); v != "" {
		cfg.Sinks.BigQuery.Project = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Sinks.Postgres.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Sinks.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the values a run cannot start without.
func (c *Config) Validate() error {
	if c.Input.Path == "" {
		return errors.New("config: input.path is required")
	}
	if _, err := c.Segment(); err != nil {
		return fmt.Errorf("config: export.segment: %w", err)
	}
	if _, _, err := c.ReferenceDate(); err != nil {
		return fmt.Errorf("config: analysis.reference_date: %w", err)
	}
	if c.Analysis.CancellationMarker == "" {
		return errors.New("config: analysis.cancellation_marker must not be empty")
	}
	if c.Sinks.BigQuery.Enabled() && (c.Sinks.BigQuery.Dataset == "" || c.Sinks.BigQuery.Table == "") {
		return errors.New("config: sinks.bigquery needs dataset and table")
	}
	return nil
}

// Segment returns the segment to export.
func (c *Config) Segment() (domain.Segment, error) {
	return domain.ParseSegment(c.Export.Segment)
}

// ExportPath returns export.path, or a file named after the export
// segment when none is configured.
func (c *Config) ExportPath() string {
	if c.Export.Path != "" {
		return c.Export.Path
	}
	return export.DefaultPath(domain.Segment(c.Export.Segment))
}

// ReferenceDate returns the configured reference date. ok is false when
// none is set and the date should be derived from the data.
func (c *Config) ReferenceDate() (date civil.Date, ok bool, err error) {
	if c.Analysis.ReferenceDate == "" {
		return civil.Date{}, false, nil
	}
	d, err := civil.ParseDate(c.Analysis.ReferenceDate)
	if err != nil {
		return civil.Date{}, false, fmt.Errorf("%q is not YYYY-MM-DD: %w", c.Analysis.ReferenceDate, domain.ErrInvalidReferenceDate)
	}
	return d, true, nil
}
