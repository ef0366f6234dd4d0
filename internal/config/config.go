// Package config provides unified configuration for the cellcount commands.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cerrors "github.com/cellcount/cellcount/internal/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration shared by every command.
type Config struct {
	// DataDir is the base directory for the database and reports
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Input configuration
	Input InputConfig `json:"input" yaml:"input"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Report output configuration
	Report ReportConfig `json:"report" yaml:"report"`

	// Cohort filter and breakdowns
	Cohort CohortConfig `json:"cohort" yaml:"cohort"`

	// Archive configuration
	Archive ArchiveConfig `json:"archive" yaml:"archive"`

	// Metrics configuration
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Log configuration
	Log LogConfig `json:"log" yaml:"log"`
}

// InputConfig holds the source CSV location.
type InputConfig struct {
	// Path is the CSV file to load. A relative path in a config file or
	// the environment is resolved against DataDir.
	Path string `json:"path" yaml:"path"`
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	// Path is the SQLite database file
	Path string `json:"path" yaml:"path"`

	// BusyTimeout is how long SQLite waits on a locked database
	BusyTimeout time.Duration `json:"busy_timeout" yaml:"busy_timeout"`
}

// ReportConfig holds report output configuration.
type ReportConfig struct {
	// Dir is the directory reports are written to
	Dir string `json:"dir" yaml:"dir"`

	// FrequencyFile is the frequency table file name, relative to Dir
	FrequencyFile string `json:"frequency_file" yaml:"frequency_file"`

	// Print echoes the frequency table to stdout
	Print bool `json:"print" yaml:"print"`

	// PreviewRows is the number of rows shown per table by preview
	PreviewRows int `json:"preview_rows" yaml:"preview_rows"`
}

// CohortConfig holds the cohort filter and the dimensions to break it down by.
type CohortConfig struct {
	SampleType             string   `json:"sample_type" yaml:"sample_type"`
	Condition              string   `json:"condition" yaml:"condition"`
	Treatment              string   `json:"treatment" yaml:"treatment"`
	TimeFromTreatmentStart int64    `json:"time_from_treatment_start" yaml:"time_from_treatment_start"`
	GroupBy                []string `json:"group_by" yaml:"group_by"`
}

// ArchiveConfig holds report archive configuration.
type ArchiveConfig struct {
	// Enabled uploads compressed reports after every load
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// MetricsConfig holds metrics output configuration.
type MetricsConfig struct {
	// TextfilePath is where load metrics are written in the Prometheus
	// text format. Empty disables the file.
	TextfilePath string `json:"textfile_path" yaml:"textfile_path"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Development switches to the human-readable console encoder
	Development bool `json:"development" yaml:"development"`
}

const defaultDataDir = "."

// DefaultConfig returns the default configuration. Relative paths are
// resolved against DataDir by Resolve.
func DefaultConfig() *Config {
	return &Config{
		DataDir: defaultDataDir,
		Input: InputConfig{
			Path: "cell-count.csv",
		},
		Database: DatabaseConfig{
			Path:        "cell_counts.db",
			BusyTimeout: 5 * time.Second,
		},
		Report: ReportConfig{
			Dir:           "",
			FrequencyFile: "relative_frequencies.txt",
			Print:         false,
			PreviewRows:   5,
		},
		Cohort: CohortConfig{
			SampleType:             "PBMC",
			Condition:              "melanoma",
			Treatment:              "miraclib",
			TimeFromTreatmentStart: 0,
			GroupBy:                []string{"project", "response", "sex"},
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Type:    "local",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Resolve resolves relative paths against DataDir and fills derived defaults.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}

	c.Input.Path = c.resolvePath(c.Input.Path)
	c.Database.Path = c.resolvePath(c.Database.Path)

	if c.Report.Dir == "" {
		c.Report.Dir = c.DataDir
	} else {
		c.Report.Dir = c.resolvePath(c.Report.Dir)
	}

	if c.Archive.Path == "" {
		c.Archive.Path = filepath.Join(c.DataDir, "archive")
	} else {
		c.Archive.Path = c.resolvePath(c.Archive.Path)
	}

	if c.Metrics.TextfilePath != "" {
		c.Metrics.TextfilePath = c.resolvePath(c.Metrics.TextfilePath)
	}
}

func (c *Config) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// FrequencyPath returns the path of the frequency table.
func (c *Config) FrequencyPath() string {
	return filepath.Join(c.Report.Dir, c.Report.FrequencyFile)
}

// SummaryPath returns the path of the load summary JSON.
func (c *Config) SummaryPath() string {
	return filepath.Join(c.Report.Dir, "load_summary.json")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return invalid("data_dir is required")
	}
	if c.Input.Path == "" {
		return invalid("input.path is required")
	}
	if c.Database.Path == "" {
		return invalid("database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		return invalid(fmt.Sprintf("database.busy_timeout must not be negative, got %s", c.Database.BusyTimeout))
	}
	if c.Report.FrequencyFile == "" {
		return invalid("report.frequency_file is required")
	}
	if c.Report.PreviewRows < 0 {
		return invalid(fmt.Sprintf("report.preview_rows must not be negative, got %d", c.Report.PreviewRows))
	}

	for _, g := range c.Cohort.GroupBy {
		switch strings.ToLower(strings.TrimSpace(g)) {
		case "project", "response", "sex", "none", "":
		default:
			return cerrors.NewConfigError(cerrors.CodeInvalidGroupBy,
				fmt.Sprintf("invalid cohort.group_by entry: %s (must be project, response, sex or none)", g))
		}
	}

	if c.Archive.Type != "local" && c.Archive.Type != "s3" {
		return invalid(fmt.Sprintf("invalid archive type: %s (must be local or s3)", c.Archive.Type))
	}
	if c.Archive.Enabled && c.Archive.Type == "s3" && c.Archive.S3.Bucket == "" {
		return invalid("archive.s3.bucket is required when archive type is s3")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	return nil
}

func invalid(msg string) error {
	return cerrors.NewConfigError(cerrors.CodeInvalidConfig, msg)
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.NewConfigError(cerrors.CodeInvalidConfig,
			fmt.Sprintf("failed to read config file: %v", err))
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, invalid(fmt.Sprintf("failed to parse YAML config: %v", err))
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, invalid(fmt.Sprintf("failed to parse JSON config: %v", err))
		}
	default:
		return nil, invalid(fmt.Sprintf("unsupported config file format: %s", ext))
	}

	return cfg, nil
}

// LoadFromEnv overrides cfg from environment variables.
// Environment variables use the CELLCOUNT_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("CELLCOUNT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CELLCOUNT_INPUT_PATH"); v != "" {
		cfg.Input.Path = v
	}

	// Database configuration
	if v := os.Getenv("CELLCOUNT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CELLCOUNT_DATABASE_BUSY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Database.BusyTimeout = d
		}
	}

	// Report configuration
	if v := os.Getenv("CELLCOUNT_REPORT_DIR"); v != "" {
		cfg.Report.Dir = v
	}
	if v := os.Getenv("CELLCOUNT_REPORT_PRINT"); v != "" {
		cfg.Report.Print = v == "true" || v == "1"
	}

	// Cohort configuration
	if v := os.Getenv("CELLCOUNT_COHORT_SAMPLE_TYPE"); v != "" {
		cfg.Cohort.SampleType = v
	}
	if v := os.Getenv("CELLCOUNT_COHORT_CONDITION"); v != "" {
		cfg.Cohort.Condition = v
	}
	if v := os.Getenv("CELLCOUNT_COHORT_TREATMENT"); v != "" {
		cfg.Cohort.Treatment = v
	}
	if v := os.Getenv("CELLCOUNT_COHORT_TIME"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Cohort.TimeFromTreatmentStart = n
		}
	}
	if v := os.Getenv("CELLCOUNT_COHORT_GROUP_BY"); v != "" {
		cfg.Cohort.GroupBy = strings.Split(v, ",")
	}

	// Archive configuration
	if v := os.Getenv("CELLCOUNT_ARCHIVE_ENABLED"); v != "" {
		cfg.Archive.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CELLCOUNT_ARCHIVE_TYPE"); v != "" {
		cfg.Archive.Type = v
	}
	if v := os.Getenv("CELLCOUNT_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
	}
	if v := os.Getenv("CELLCOUNT_S3_BUCKET"); v != "" {
		cfg.Archive.S3.Bucket = v
	}
	if v := os.Getenv("CELLCOUNT_S3_REGION"); v != "" {
		cfg.Archive.S3.Region = v
	}
	if v := os.Getenv("CELLCOUNT_S3_ENDPOINT"); v != "" {
		cfg.Archive.S3.Endpoint = v
	}

	if v := os.Getenv("CELLCOUNT_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.TextfilePath = v
	}
	if v := os.Getenv("CELLCOUNT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		filepath.Dir(c.Database.Path),
		c.Report.Dir,
	}
	if c.Archive.Enabled && c.Archive.Type == "local" {
		dirs = append(dirs, c.Archive.Path)
	}
	if c.Metrics.TextfilePath != "" {
		dirs = append(dirs, filepath.Dir(c.Metrics.TextfilePath))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return cerrors.NewStorageError(cerrors.CodeStoreUnavailable,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}
	}

	return nil
}
