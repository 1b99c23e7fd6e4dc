// Package config provides configuration management for the schools sync tool.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"schoolsync/pkg/utils"
)

// EnvPrefix is the prefix of environment variables that override file settings.
const EnvPrefix = "SCHOOLSYNC"

// DefaultSourceURL is the public schools endpoint.
const DefaultSourceURL = "https://digital.edu.az/backend-api/schools"

// Configuration validation errors.
var (
	ErrMissingSource      = errors.New("source.url or source.file is required")
	ErrInvalidSourceURL   = errors.New("source.url must be an absolute http(s) URL")
	ErrInvalidMaxAttempts = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidBackoffBase = errors.New("retry.backoff_base must be >= 1.0")
	ErrInvalidTimeout     = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidMaxDelay    = errors.New("retry.max_delay_sec must be non-negative")
	ErrMissingOutputDir   = errors.New("output.dir is required")
	ErrNoOutputs          = errors.New("at least one of output.csv, output.xlsx, output.raw_json, output.sqlite is required")
	ErrInvalidWorkers     = errors.New("assemble.workers must be at least 1")
	ErrInvalidLogLevel    = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat   = errors.New("logging.format must be 'text' or 'json'")
	ErrInvalidCron        = errors.New("schedule.cron is not a valid cron expression")
	ErrInvalidSampleRows  = errors.New("report.sample_rows must be non-negative")
)

// Config represents the complete sync configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Retry    RetryPolicy    `yaml:"retry"`
	Output   OutputConfig   `yaml:"output"`
	Mapping  MappingConfig  `yaml:"mapping"`
	Assemble AssembleConfig `yaml:"assemble"`
	Logging  LoggingConfig  `yaml:"logging"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Report   ReportConfig   `yaml:"report"`
}

// SourceConfig describes where the raw payload comes from.
type SourceConfig struct {
	URL  string `yaml:"url"`
	File string `yaml:"file"`
	// InsecureSkipVerify disables TLS certificate verification. The schools
	// endpoint serves a self-signed certificate.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// IsLocalFile returns true if this source uses a local file.
func (s *SourceConfig) IsLocalFile() bool {
	return s.File != ""
}

// GetSource returns the file path if local, or URL if remote.
func (s *SourceConfig) GetSource() string {
	if s.IsLocalFile() {
		return s.File
	}

	return s.URL
}

// RetryPolicy defines fetch retry behavior.
type RetryPolicy struct {
	MaxAttempts int     `yaml:"max_attempts"`
	BackoffBase float64 `yaml:"backoff_base"`
	MaxDelaySec int     `yaml:"max_delay_sec"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// OutputConfig names the artifacts written after a run. Empty names are skipped.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	CSV      string `yaml:"csv"`
	XLSX     string `yaml:"xlsx"`
	RawJSON  string `yaml:"raw_json"`
	SQLite   string `yaml:"sqlite"`
	Manifest string `yaml:"manifest"`
	BOM      bool   `yaml:"bom"`
}

// MappingConfig points at an external candidate path table.
type MappingConfig struct {
	CandidatePaths string `yaml:"candidate_paths"`
}

// AssembleConfig controls row assembly.
type AssembleConfig struct {
	Workers int `yaml:"workers"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScheduleConfig holds the cron expression for repeated runs.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// ReportConfig controls the console preview.
type ReportConfig struct {
	SampleRows int      `yaml:"sample_rows"`
	Columns    []string `yaml:"columns"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			URL:                DefaultSourceURL,
			InsecureSkipVerify: true,
		},
		Retry: RetryPolicy{
			MaxAttempts: 4,
			BackoffBase: 2.0,
			TimeoutSec:  10,
		},
		Output: OutputConfig{
			Dir:      ".",
			CSV:      "schools.csv",
			XLSX:     "schools.xlsx",
			RawJSON:  "raw_response.json",
			Manifest: "manifest.json",
		},
		Assemble: AssembleConfig{Workers: 1},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Report: ReportConfig{
			SampleRows: 5,
			Columns:    []string{"id", "name", "regionName", "contacts_phones", "contacts_emails"},
		},
	}
}

// LoadConfig loads configuration from a YAML file layered over Default, then
// applies environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides settings from SCHOOLSYNC_* environment variables,
// e.g. SCHOOLSYNC_SOURCE_URL or SCHOOLSYNC_LOGGING_LEVEL.
func (c *Config) ApplyEnv() {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	strs := map[string]*string{
		"source.url":              &c.Source.URL,
		"source.file":             &c.Source.File,
		"output.dir":              &c.Output.Dir,
		"output.csv":              &c.Output.CSV,
		"output.xlsx":             &c.Output.XLSX,
		"output.raw_json":         &c.Output.RawJSON,
		"output.sqlite":           &c.Output.SQLite,
		"output.manifest":         &c.Output.Manifest,
		"mapping.candidate_paths": &c.Mapping.CandidatePaths,
		"logging.level":           &c.Logging.Level,
		"logging.format":          &c.Logging.Format,
		"schedule.cron":           &c.Schedule.Cron,
	}
	ints := map[string]*int{
		"retry.max_attempts":  &c.Retry.MaxAttempts,
		"retry.max_delay_sec": &c.Retry.MaxDelaySec,
		"retry.timeout_sec":   &c.Retry.TimeoutSec,
		"assemble.workers":    &c.Assemble.Workers,
		"report.sample_rows":  &c.Report.SampleRows,
	}
	bools := map[string]*bool{
		"source.insecure_skip_verify": &c.Source.InsecureSkipVerify,
		"output.bom":                  &c.Output.BOM,
	}

	for key, dst := range strs {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	for key, dst := range ints {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	for key, dst := range bools {
		_ = v.BindEnv(key)
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	_ = v.BindEnv("retry.backoff_base")
	if v.IsSet("retry.backoff_base") {
		c.Retry.BackoffBase = v.GetFloat64("retry.backoff_base")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Source.URL == "" && c.Source.File == "" {
		return ErrMissingSource
	}

	if c.Source.File == "" && !utils.NewHTTPHelper().IsValidURL(c.Source.URL) {
		return fmt.Errorf("%w: %q", ErrInvalidSourceURL, c.Source.URL)
	}

	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Retry.BackoffBase < 1.0 {
		return ErrInvalidBackoffBase
	}

	if c.Retry.MaxDelaySec < 0 {
		return ErrInvalidMaxDelay
	}

	if c.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.Output.Dir == "" {
		return ErrMissingOutputDir
	}

	if c.Output.CSV == "" && c.Output.XLSX == "" && c.Output.RawJSON == "" && c.Output.SQLite == "" {
		return ErrNoOutputs
	}

	if c.Assemble.Workers < 1 {
		return ErrInvalidWorkers
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCron, err)
		}
	}

	if c.Report.SampleRows < 0 {
		return ErrInvalidSampleRows
	}

	return nil
}

// GetRetryDelay returns the wait after failed attempt n (1-based):
// BackoffBase^n seconds, capped at MaxDelaySec when set.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	secs := math.Pow(rp.BackoffBase, float64(attempt))
	if rp.MaxDelaySec > 0 && secs > float64(rp.MaxDelaySec) {
		secs = float64(rp.MaxDelaySec)
	}

	return time.Duration(secs * float64(time.Second))
}

// GetTimeout returns the per-request timeout.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// GetOutputPath joins name onto the output directory. Empty names stay empty.
func (c *Config) GetOutputPath(name string) string {
	if name == "" {
		return ""
	}

	if filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(c.Output.Dir, name)
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Source: %s, MaxAttempts: %d, Output: %s, Workers: %d}",
		c.Source.GetSource(),
		c.Retry.MaxAttempts,
		c.Output.Dir,
		c.Assemble.Workers,
	)
}
