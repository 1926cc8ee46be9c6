package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration
type Config struct {
	// Server settings
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// Data source settings
	SourceType    string `yaml:"sourceType"` // "file" or "remote"
	DataDir       string `yaml:"dataDir"`
	RemoteBaseURL string `yaml:"remoteBaseURL"`
	DateLayout    string `yaml:"dateLayout"`
	Preload       bool   `yaml:"preload"`

	// Catalog file; empty selects the built-in catalog
	CatalogFile string `yaml:"catalogFile"`

	// Query behavior
	MaxRows          int     `yaml:"maxRows"`
	ParamTolerance   float64 `yaml:"paramTolerance"`
	ReportTruncation bool    `yaml:"reportTruncation"`

	// Audit database path; empty disables the audit log
	AuditDB string `yaml:"auditDB"`

	// Logging
	LogLevel       string `yaml:"logLevel"`
	LogDevelopment bool   `yaml:"logDevelopment"`

	// Operational settings
	GracefulShutdownTimeout time.Duration `yaml:"gracefulShutdownTimeout"`
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.SourceType != "file" && c.SourceType != "remote" {
		return fmt.Errorf("source type must be 'file' or 'remote'")
	}

	if c.SourceType == "file" && c.DataDir == "" {
		return fmt.Errorf("data directory is required when source type is 'file'")
	}

	if c.SourceType == "remote" && c.RemoteBaseURL == "" {
		return fmt.Errorf("remote base URL required when source type is 'remote'")
	}

	if c.DateLayout == "" {
		return fmt.Errorf("date layout is required")
	}

	if c.MaxRows <= 0 {
		return fmt.Errorf("max rows must be positive, got %d", c.MaxRows)
	}

	if c.ParamTolerance < 0 {
		return fmt.Errorf("parameter tolerance cannot be negative, got %g", c.ParamTolerance)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error")
	}

	return nil
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Port:                    8050,
		Host:                    "0.0.0.0",
		SourceType:              "file",
		DataDir:                 "data/predicted_ventilator",
		DateLayout:              "2006-01-02",
		Preload:                 true,
		MaxRows:                 100,
		LogLevel:                "info",
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}
