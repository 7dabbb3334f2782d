package config

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is prepended to every environment variable read by Load.
	EnvPrefix = "CONFLOADER_"

	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultMaxImportDepth = 64
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	SchemaFile string `yaml:"schema_file" env:"SCHEMA_FILE"`
	ConfigFile string `yaml:"config_file" env:"CONFIG_FILE"`

	Port                 string        `yaml:"port" env:"PORT" validate:"required"`
	ShutdownGracePeriod  time.Duration `yaml:"shutdown_grace_period" env:"SHUTDOWN_GRACE_PERIOD" validate:"gte=0"`
	ReadHeaderTimeout    time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT" validate:"gte=0"`
	WriteTimeout         time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT" validate:"gte=0"`
	IdleTimeout          time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT" validate:"gte=0"`
	EnableRequestLogging bool          `yaml:"enable_request_logging" env:"ENABLE_REQUEST_LOGGING"`
	RateLimitRPS         float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst       int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST" validate:"gte=0"`

	LogLevel      string `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFile       string `yaml:"log_file" env:"LOG_FILE"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb" env:"LOG_MAX_SIZE_MB" validate:"gte=1"`
	LogMaxBackups int    `yaml:"log_max_backups" env:"LOG_MAX_BACKUPS" validate:"gte=0"`
	LogMaxAgeDays int    `yaml:"log_max_age_days" env:"LOG_MAX_AGE_DAYS" validate:"gte=0"`

	MaxImportDepth  int  `yaml:"max_import_depth" env:"MAX_IMPORT_DEPTH" validate:"gte=1"`
	RelativeImports bool `yaml:"relative_imports" env:"RELATIVE_IMPORTS"`
}

// CLIOverrides holds command-line flag overrides. Empty strings and zero
// values leave the lower-precedence value in place; pointer fields are applied
// whenever they are non-nil so that zero can be set explicitly.
type CLIOverrides struct {
	SettingsFile   string
	SchemaFile     string
	ConfigFile     string
	Port           string
	LogLevel       string
	LogFile        string
	MaxImportDepth int
	// RelativeImports can only switch importer-relative resolution on.
	RelativeImports bool

	EnableRequestLogging *bool
	RateLimitRPS         *float64
	RateLimitBurst       *int
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	// YAML overrides environment variables
	if overrides != nil && overrides.SettingsFile != "" {
		if err := applyYAMLFile(&cfg, overrides.SettingsFile); err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
	}

	// CLI overrides (highest precedence)
	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		LogLevel:             defaultLogLevel,
		LogMaxSizeMB:         10,
		LogMaxBackups:        3,
		LogMaxAgeDays:        28,
		MaxImportDepth:       defaultMaxImportDepth,
	}
}

// applyEnvConfig overwrites fields whose CONFLOADER_* variable is set.
func applyEnvConfig(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// applyYAMLFile decodes a YAML settings file over cfg. Keys absent from the
// file keep their current value.
func applyYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse YAML: %w", err)
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	flags := Config{
		SchemaFile:      overrides.SchemaFile,
		ConfigFile:      overrides.ConfigFile,
		Port:            overrides.Port,
		LogLevel:        overrides.LogLevel,
		LogFile:         overrides.LogFile,
		MaxImportDepth:  overrides.MaxImportDepth,
		RelativeImports: overrides.RelativeImports,
	}
	if err := mergo.Merge(cfg, flags, mergo.WithOverride); err != nil {
		return fmt.Errorf("merge CLI overrides: %w", err)
	}

	if overrides.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *overrides.EnableRequestLogging
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
