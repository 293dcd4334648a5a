//-------------------------------------------------------------------------
//
// pgEdge Loan ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for pgedge-loanetl.
// Configuration is loaded from config files and CLI flags (no environment variables).
// CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Link modes for the loan to customer relationship.
const (
	// LinkIndependent draws the loan's customer_id from its own random
	// permutation, unrelated to the row the customer was built from.
	LinkIndependent = "independent"

	// LinkRow uses the customer built from the same staging row.
	LinkRow = "row"
)

// DateLayout is the layout used for dates in config files.
const DateLayout = "2006-01-02"

// Config holds all configuration for pgedge-loanetl.
type Config struct {
	// Connection is the PostgreSQL connection string.
	Connection string `mapstructure:"connection"`

	// Source is the path of the CSV file to load.
	Source string `mapstructure:"source"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Load holds configuration for the load subcommand.
	Load LoadConfig `mapstructure:"load"`

	// Report holds configuration for the report subcommand.
	Report ReportConfig `mapstructure:"report"`

	// Export holds configuration for the export subcommand.
	Export ExportConfig `mapstructure:"export"`
}

// LoadConfig holds configuration for a rebuild.
type LoadConfig struct {
	// Seed for the random generator. Zero picks a seed from the clock;
	// the seed used is logged and stored with the run metadata.
	Seed uint64 `mapstructure:"seed"`

	// LinkMode selects how loans reference customers: independent or row.
	LinkMode string `mapstructure:"link_mode"`

	// BatchSize is the number of rows per INSERT statement.
	BatchSize int `mapstructure:"batch_size"`

	// Epoch is the first possible origination date (YYYY-MM-DD).
	Epoch string `mapstructure:"epoch"`

	// OriginationWindowDays is the width of the origination date window.
	OriginationWindowDays int `mapstructure:"origination_window_days"`

	// DefaultInterestRate replaces a missing loan_int_rate.
	DefaultInterestRate float64 `mapstructure:"default_interest_rate"`
}

// ReportConfig holds configuration for the report subcommand.
type ReportConfig struct {
	// Limit is the maximum number of summary rows printed (0 = all).
	Limit int `mapstructure:"limit"`
}

// ExportConfig holds configuration for exporting to a secondary database.
type ExportConfig struct {
	// Driver is the target type: sqlite, mysql or postgres.
	Driver string `mapstructure:"driver"`

	// DSN is the target data source name (a file path for sqlite).
	DSN string `mapstructure:"dsn"`

	// BatchSize is the number of rows per insert batch.
	BatchSize int `mapstructure:"batch_size"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Source:   "credit_risk_dataset.csv",
		Load: LoadConfig{
			LinkMode:              LinkIndependent,
			BatchSize:             1000,
			Epoch:                 "2018-01-01",
			OriginationWindowDays: 1825, // 5 years
			DefaultInterestRate:   10.0,
		},
		Report: ReportConfig{
			Limit: 20,
		},
		Export: ExportConfig{
			Driver:    "sqlite",
			DSN:       "loanetl.db",
			BatchSize: 500,
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./pgedge-loanetl.yaml
// 3. ~/.config/pgedge-loanetl/pgedge-loanetl.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("pgedge-loanetl")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pgedge-loanetl"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Connection == "" {
		return fmt.Errorf("connection string is required")
	}
	return nil
}

// ValidateLoad checks configuration required for the load command.
func (c *Config) ValidateLoad() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return c.ValidateSource()
}

// ValidateSource checks the source file and synthesis settings. It does
// not require a connection.
func (c *Config) ValidateSource() error {
	if c.Source == "" {
		return fmt.Errorf("source file is required for load")
	}
	if c.Load.LinkMode != LinkIndependent && c.Load.LinkMode != LinkRow {
		return fmt.Errorf("link_mode must be '%s' or '%s'", LinkIndependent, LinkRow)
	}
	if c.Load.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}
	if _, err := c.Load.EpochDate(); err != nil {
		return err
	}
	if c.Load.OriginationWindowDays < 0 {
		return fmt.Errorf("origination_window_days must be non-negative")
	}
	if c.Load.DefaultInterestRate < 0 {
		return fmt.Errorf("default_interest_rate must be non-negative")
	}
	return nil
}

// ValidateExport checks configuration required for the export command.
func (c *Config) ValidateExport() error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch c.Export.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("export driver must be 'sqlite', 'mysql' or 'postgres'")
	}
	if c.Export.DSN == "" {
		return fmt.Errorf("export dsn is required")
	}
	if c.Export.BatchSize < 1 {
		return fmt.Errorf("export batch_size must be at least 1")
	}
	return nil
}

// EpochDate parses the configured epoch as a UTC date.
func (l LoadConfig) EpochDate() (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, l.Epoch, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch %q: %w", l.Epoch, err)
	}
	return t, nil
}
