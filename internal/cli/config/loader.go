package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in context.
// Shared with the cli package via LoggerKey().
type loggerKey struct{}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// findConfigFile finds the config file to use.
// Priority: explicit path > corpusforge.yaml > corpusforge.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("corpusforge.yaml"); err == nil {
		return "corpusforge.yaml"
	}
	if _, err := os.Stat("corpusforge.yml"); err == nil {
		return "corpusforge.yml"
	}
	return ""
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"data_dir":       DefaultDataDir,
		"output_dir":     DefaultOutputDir,
		"format":         DefaultFormat,
		"version_prefix": DefaultVersionPrefix,
		"state_path":     DefaultStateFile,
		"environment":    DefaultEnv,
		"log_level":      DefaultLogLevel,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load .env and .env.{environment} into the process environment so the
	// env provider below picks them up. Missing files are fine.
	loadDotenv(selectedEnvironment(flags))

	// 4. Load environment variables (CORPUSFORGE_ prefix)
	// Transform: CORPUSFORGE_DATA_DIR -> data_dir
	if err := k.Load(env.Provider("CORPUSFORGE_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "CORPUSFORGE_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys
			key := strings.ReplaceAll(f.Name, "-", "_")

			// The CLI uses --state for brevity, but the config struct
			// uses state_path for clarity
			if key == "state" {
				return "state_path", posflag.FlagVal(flags, f)
			}

			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 6. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 7. Expand ${VAR} references in values that commonly carry secrets
	cfg.GCSBucket = expandEnvVars(cfg.GCSBucket)
	cfg.Postgres.Host = expandEnvVars(cfg.Postgres.Host)
	cfg.Postgres.Username = expandEnvVars(cfg.Postgres.Username)
	cfg.Postgres.Password = expandEnvVars(cfg.Postgres.Password)
	cfg.Postgres.Database = expandEnvVars(cfg.Postgres.Database)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// selectedEnvironment resolves the environment name before env vars and flags
// are merged, so the matching dotenv file can seed the process environment.
func selectedEnvironment(flags *pflag.FlagSet) string {
	environment := k.String("environment")
	if v := os.Getenv("CORPUSFORGE_ENVIRONMENT"); v != "" {
		environment = v
	}
	if flags != nil && flags.Changed("environment") {
		if v, _ := flags.GetString("environment"); v != "" {
			environment = v
		}
	}
	return environment
}

func loadDotenv(environment string) {
	_ = godotenv.Load()
	if environment != "" {
		_ = godotenv.Load(".env." + environment)
	}
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}
