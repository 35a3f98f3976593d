package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
	_ "time/tzdata" // embedded IANA database for hosts without zoneinfo

	"gopkg.in/yaml.v3"

	"coursecal/internal/model"
)

const (
	DefaultTimezone        = "Asia/Hong_Kong"
	DefaultProdID          = "-//CSV Course Importer//iOS//"
	DefaultFlexibleProdID  = "-//Flexible CSV Course Importer//iOS//"
	DefaultWeeks           = 16
	DefaultFallbackCount   = 30
	DefaultSimpleOutfile   = "courses_from_csv.ics"
	DefaultFlexibleOutfile = "courses_flexible.ics"
	DefaultLogLevel        = "info"
)

// Config holds converter settings. Every field can also be set from the
// command line; explicit flags take precedence over the file.
type Config struct {
	// Timezone is the IANA zone used for every DTSTART/DTEND (e.g. "Asia/Hong_Kong").
	Timezone string `yaml:"timezone"`

	// ProdID / FlexibleProdID are written as the calendar PRODID by the
	// simple and flexible converters respectively.
	ProdID         string `yaml:"prod_id"`
	FlexibleProdID string `yaml:"flexible_prod_id"`

	// Weeks is the term length used by the simple converter.
	Weeks int `yaml:"weeks"`

	// FallbackCount caps recurring rows that have neither count nor end_date.
	FallbackCount int `yaml:"fallback_count"`

	// ExDateAtStartTime places EXDATE instants at the event start time
	// instead of local midnight. Most calendar clients only suppress an
	// occurrence when the EXDATE matches its DTSTART exactly.
	ExDateAtStartTime bool `yaml:"exdate_at_start_time"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	SimpleOutfile   string `yaml:"simple_outfile"`
	FlexibleOutfile string `yaml:"flexible_outfile"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone:        DefaultTimezone,
		ProdID:          DefaultProdID,
		FlexibleProdID:  DefaultFlexibleProdID,
		Weeks:           DefaultWeeks,
		FallbackCount:   DefaultFallbackCount,
		LogLevel:        DefaultLogLevel,
		SimpleOutfile:   DefaultSimpleOutfile,
		FlexibleOutfile: DefaultFlexibleOutfile,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled files still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.ProdID == "" {
		c.ProdID = DefaultProdID
	}
	if c.FlexibleProdID == "" {
		c.FlexibleProdID = DefaultFlexibleProdID
	}
	if c.Weeks <= 0 {
		c.Weeks = DefaultWeeks
	}
	if c.FallbackCount <= 0 {
		c.FallbackCount = DefaultFallbackCount
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.SimpleOutfile == "" {
		c.SimpleOutfile = DefaultSimpleOutfile
	}
	if c.FlexibleOutfile == "" {
		c.FlexibleOutfile = DefaultFlexibleOutfile
	}
}

// Location resolves Timezone through the IANA database.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, &model.ConfigError{Msg: fmt.Sprintf("unknown timezone %q: %v", c.Timezone, err)}
	}
	return loc, nil
}

// Load reads configuration from the given YAML path.
//
// Behavior:
//   - empty path: defaults
//   - path does not exist: ConfigError (nothing is created)
//   - otherwise: strict YAML decode (unknown keys rejected), then Normalize
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &model.ConfigError{Msg: fmt.Sprintf("config file %s does not exist", path)}
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &model.ConfigError{Msg: fmt.Sprintf("config file %s: %v", path, err)}
	}
	cfg.Normalize()

	return cfg, nil
}
