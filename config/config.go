//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of WDIShape.
//
// WDIShape is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// WDIShape is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with WDIShape. If not, see https://www.gnu.org/licenses/.

// Package config holds the YAML run configuration of the wdishape command.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/wdishape/core"
	"github.com/aaronlmathis/wdishape/indicator"
)

// Config is the complete run configuration.
type Config struct {
	Input          InputConfig       `yaml:"input"`
	Indicators     map[string]string `yaml:"indicators,omitempty"`      // code: label; empty means the default six
	IndicatorsFile string            `yaml:"indicators_file,omitempty"` // YAML file of code: label pairs
	Shape          string            `yaml:"shape"`                     // nested, flat
	ErrorStrategy  string            `yaml:"error_strategy"`            // fail-fast, skip, collect
	Years          YearsConfig       `yaml:"years"`
	Output         OutputConfig      `yaml:"output"`
	Transforms     TransformConfig   `yaml:"transforms"`
	Filters        FilterConfig      `yaml:"filters"`
	Validation     ValidationConfig  `yaml:"validation"`
	S3             S3Config          `yaml:"s3"`
	Logging        LoggingConfig     `yaml:"logging"`
}

// InputConfig configures the row source.
type InputConfig struct {
	Location    string `yaml:"location"`   // path, s3://bucket/key or http(s):// URL
	SkipHeader  bool   `yaml:"skip_header"`
	Delimiter   string `yaml:"delimiter"`
	LazyQuotes  bool   `yaml:"lazy_quotes"`
	HTTPTimeout string `yaml:"http_timeout"`
	BearerToken string `yaml:"bearer_token,omitempty"`
}

// YearsConfig is the year axis named by the denormalized CSV header and the Parquet year column.
type YearsConfig struct {
	First int `yaml:"first"`
	Last  int `yaml:"last"`
}

// OutputConfig lists the artifacts a run produces. Only Location is required.
type OutputConfig struct {
	Location string         `yaml:"location"` // JSON artifact: path, s3://bucket/key or "-"
	Indent   string         `yaml:"indent"`
	CSV      string         `yaml:"csv,omitempty"`     // denormalized CSV (write-csv)
	Parquet  string         `yaml:"parquet,omitempty"` // long-form Parquet
	Postgres PostgresConfig `yaml:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo"`
}

// PostgresConfig configures the optional PostgreSQL sink. An empty DSN disables it.
type PostgresConfig struct {
	DSN      string `yaml:"dsn,omitempty"`
	Table    string `yaml:"table"`
	Truncate bool   `yaml:"truncate"`
}

// MongoConfig configures the optional MongoDB sink. An empty URI disables it.
type MongoConfig struct {
	URI        string `yaml:"uri,omitempty"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// TransformConfig enables row transforms.
type TransformConfig struct {
	TrimSpace     bool     `yaml:"trim_space"`
	UpperCountry  bool     `yaml:"upper_country"`
	MissingTokens []string `yaml:"missing_tokens,omitempty"` // replaced by "" in the value tail
}

// FilterConfig restricts which countries reach the table.
type FilterConfig struct {
	Countries        []string `yaml:"countries,omitempty"`
	ExcludeCountries []string `yaml:"exclude_countries,omitempty"`
	CountryPattern   string   `yaml:"country_pattern,omitempty"`
	DropEmpty        bool     `yaml:"drop_empty"`
}

// ValidationConfig enables checks on the finished table. Zero values disable a check.
type ValidationConfig struct {
	MinCountries   int      `yaml:"min_countries"`
	RequiredLabels []string `yaml:"required_labels,omitempty"`
	ValueCount     int      `yaml:"value_count"`
	MaxEmptyRate   float64  `yaml:"max_empty_rate"`
}

// S3Config configures the S3 client shared by S3 sources and outputs.
type S3Config struct {
	Region    string `yaml:"region,omitempty"`
	Profile   string `yaml:"profile,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			SkipHeader:  true,
			Delimiter:   ",",
			HTTPTimeout: "60s",
		},
		Shape:         string(core.ShapeNested),
		ErrorStrategy: core.CollectErrors.String(),
		Years: YearsConfig{
			First: core.DefaultYearAxis.First,
			Last:  core.DefaultYearAxis.Last,
		},
		Output: OutputConfig{
			Location: "-",
			Postgres: PostgresConfig{Table: "indicator_values"},
			Mongo:    MongoConfig{Database: "wdi", Collection: "indicators"},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WDISHAPE_INPUT"); v != "" {
		c.Input.Location = v
	}
	if v := os.Getenv("WDISHAPE_OUTPUT"); v != "" {
		c.Output.Location = v
	}
	if v := os.Getenv("WDISHAPE_POSTGRES_DSN"); v != "" {
		c.Output.Postgres.DSN = v
	}
	if v := os.Getenv("WDISHAPE_MONGO_URI"); v != "" {
		c.Output.Mongo.URI = v
	}
}

// Mapping resolves the indicator mapping: the inline table, else the mapping file, else the default.
func (c *Config) Mapping() (indicator.Mapping, error) {
	switch {
	case len(c.Indicators) > 0:
		m := indicator.Mapping(c.Indicators).Clone()
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return m, nil
	case c.IndicatorsFile != "":
		return indicator.Load(c.IndicatorsFile)
	default:
		return indicator.Default(), nil
	}
}

// GetShape returns the parsed output shape, nested when invalid.
func (c *Config) GetShape() core.Shape {
	shape, err := core.ParseShape(c.Shape)
	if err != nil {
		return core.ShapeNested
	}
	return shape
}

// GetErrorStrategy returns the parsed error strategy, CollectErrors when invalid.
func (c *Config) GetErrorStrategy() core.ErrorStrategy {
	strategy, err := core.ParseErrorStrategy(c.ErrorStrategy)
	if err != nil {
		return core.CollectErrors
	}
	return strategy
}

// GetYearAxis returns the configured year axis.
func (c *Config) GetYearAxis() core.YearAxis {
	return core.YearAxis{First: c.Years.First, Last: c.Years.Last}
}

// GetDelimiter returns the input delimiter rune.
func (c *Config) GetDelimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.Input.Delimiter)
	if r == utf8.RuneError {
		return ','
	}
	return r
}

// GetHTTPTimeout returns the HTTP source timeout as a duration.
func (c *Config) GetHTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.Input.HTTPTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Input.Location == "" {
		return fmt.Errorf("input location not configured (set input.location, --input or WDISHAPE_INPUT)")
	}
	if c.Output.Location == "" {
		return fmt.Errorf("output location not configured (set output.location, --output or WDISHAPE_OUTPUT)")
	}

	shape, err := core.ParseShape(c.Shape)
	if err != nil {
		return err
	}
	if _, err := core.ParseErrorStrategy(c.ErrorStrategy); err != nil {
		return err
	}

	mapping, err := c.Mapping()
	if err != nil {
		return fmt.Errorf("invalid indicator mapping: %w", err)
	}
	if shape == core.ShapeFlat && len(mapping) != 1 {
		return fmt.Errorf("flat shape needs exactly one indicator, mapping has %d", len(mapping))
	}

	if utf8.RuneCountInString(c.Input.Delimiter) != 1 {
		return fmt.Errorf("input delimiter must be a single character, got %q", c.Input.Delimiter)
	}
	if c.Input.HTTPTimeout != "" {
		if _, err := time.ParseDuration(c.Input.HTTPTimeout); err != nil {
			return fmt.Errorf("invalid input.http_timeout: %w", err)
		}
	}
	if c.Years.First <= 0 || c.Years.Last <= 0 {
		return fmt.Errorf("year axis needs positive years, got %d..%d", c.Years.First, c.Years.Last)
	}

	if c.Filters.CountryPattern != "" {
		if _, err := regexp.Compile(c.Filters.CountryPattern); err != nil {
			return fmt.Errorf("invalid filters.country_pattern: %w", err)
		}
	}
	if c.Validation.MaxEmptyRate < 0 || c.Validation.MaxEmptyRate > 1 {
		return fmt.Errorf("validation.max_empty_rate must be within 0..1, got %v", c.Validation.MaxEmptyRate)
	}
	if c.Validation.MinCountries < 0 || c.Validation.ValueCount < 0 {
		return fmt.Errorf("validation counts must not be negative")
	}

	if c.Output.Postgres.DSN != "" && c.Output.Postgres.Table == "" {
		return fmt.Errorf("output.postgres.table is required when a DSN is set")
	}
	if c.Output.Mongo.URI != "" && (c.Output.Mongo.Database == "" || c.Output.Mongo.Collection == "") {
		return fmt.Errorf("output.mongo.database and output.mongo.collection are required when a URI is set")
	}

	validLevel := false
	for _, level := range ValidLogLevels {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}

	return nil
}
