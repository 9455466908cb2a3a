// Package config provides configuration management for the corpusforge CLI.
//
// Configuration is loaded from (lowest to highest precedence) built-in
// defaults, an optional corpusforge.yaml file, CORPUSFORGE_-prefixed
// environment variables, and command-line flags.
package config

import (
	"fmt"
	"log/slog"

	"github.com/detectlab/corpusforge/internal/export"
)

// Config holds all CLI configuration options.
type Config struct {
	DataDir       string        `koanf:"data_dir"`
	OutputDir     string        `koanf:"output_dir"`
	Format        string        `koanf:"format"`
	VersionPrefix string        `koanf:"version_prefix"`
	StatePath     string        `koanf:"state_path"`
	SchemasFile   string        `koanf:"schemas_file"`
	Environment   string        `koanf:"environment"`
	LogLevel      string        `koanf:"log_level"`
	GCSBucket     string        `koanf:"gcs_bucket"`
	Postgres      export.Config `koanf:"postgres"`
}

// Default configuration values.
const (
	DefaultDataDir       = "data/raw"
	DefaultOutputDir     = "data/processed"
	DefaultFormat        = "parquet"
	DefaultVersionPrefix = "v"
	DefaultStateFile     = ".corpusforge/state.db"
	DefaultEnv           = "dev"
	DefaultLogLevel      = "info"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Format {
	case "csv", "parquet":
	default:
		return fmt.Errorf("unsupported format %q (expected csv or parquet)", c.Format)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps a level name to its slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (expected debug, info, warn or error)", level)
	}
}
