package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/detectlab/corpusforge/internal/cli/config"
	"github.com/detectlab/corpusforge/internal/schema"
	"github.com/detectlab/corpusforge/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// NewCommandContext builds the shared dependencies from the command context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	return &CommandContext{
		Cfg:    getConfig(),
		Logger: config.GetLogger(cmd.Context()),
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to
// environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	return &config.Config{
		DataDir:       getEnvOrDefault("CORPUSFORGE_DATA_DIR", config.DefaultDataDir),
		OutputDir:     getEnvOrDefault("CORPUSFORGE_OUTPUT_DIR", config.DefaultOutputDir),
		Format:        getEnvOrDefault("CORPUSFORGE_FORMAT", config.DefaultFormat),
		VersionPrefix: getEnvOrDefault("CORPUSFORGE_VERSION_PREFIX", config.DefaultVersionPrefix),
		StatePath:     getEnvOrDefault("CORPUSFORGE_STATE_PATH", config.DefaultStateFile),
		SchemasFile:   os.Getenv("CORPUSFORGE_SCHEMAS_FILE"),
		Environment:   getEnvOrDefault("CORPUSFORGE_ENVIRONMENT", config.DefaultEnv),
		LogLevel:      getEnvOrDefault("CORPUSFORGE_LOG_LEVEL", config.DefaultLogLevel),
		GCSBucket:     os.Getenv("CORPUSFORGE_GCS_BUCKET"),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadRegistry builds the schema registry, applying the configured overlay
// file when one is set.
func loadRegistry(cfg *config.Config) (*schema.Registry, error) {
	r := schema.NewRegistry()
	if cfg.SchemasFile != "" {
		if err := r.LoadOverlay(cfg.SchemasFile); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// openStore opens the state database, creating its directory and applying
// pending migrations. The caller must Close the returned store.
func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}
	return store, nil
}
