// Package config provides configuration management for stylewatch.
//
// Configuration is loaded from four sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (STYLEWATCH_ prefix), including those read
//     from a dotenv file
//  3. Config file (.stylewatch.yaml)
//  4. Defaults
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/stylewatch/internal/layout"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Build defaults, relative to the base directory.
const (
	DefaultInternalSource = "src/main/resources"
	DefaultInternalOutput = "target/classes"
	DefaultExternalSource = "src/main/assets"
	DefaultExternalOutput = "target/wisdom/assets"
	DefaultTool           = "myth"
	DefaultToolVersion    = "0.3.4"
	DefaultExtension      = "css"
	DefaultDebounce       = 300 * time.Millisecond
)

// Config represents the configuration of one build or watch session.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" yaml:"log-level"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" yaml:"log-format"`

	// NoColor disables colored output.
	NoColor bool `mapstructure:"no-color" yaml:"no-color"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" yaml:"quiet"`

	// BaseDir is the project directory relative roots are resolved against.
	BaseDir string `mapstructure:"base-dir" yaml:"base-dir"`

	InternalSource string `mapstructure:"internal-source" yaml:"internal-source"`
	InternalOutput string `mapstructure:"internal-output" yaml:"internal-output"`
	ExternalSource string `mapstructure:"external-source" yaml:"external-source"`
	ExternalOutput string `mapstructure:"external-output" yaml:"external-output"`

	// Tool is the external processor executable.
	Tool string `mapstructure:"tool" yaml:"tool"`

	// ToolArgs are passed to the tool before the input and output paths.
	ToolArgs []string `mapstructure:"tool-args" yaml:"tool-args,omitempty"`

	// ToolVersion is a semantic version or constraint the tool must satisfy.
	ToolVersion string `mapstructure:"tool-version" yaml:"tool-version"`

	// Extension is the stylesheet extension, matched case-sensitively.
	Extension string `mapstructure:"extension" yaml:"extension"`

	// Debounce is the quiet period per file in watch mode.
	Debounce time.Duration `mapstructure:"debounce" yaml:"-"`

	// ConfigFile is the resolved path to the config file used.
	// Set after Load(), never read from config itself.
	ConfigFile string `mapstructure:"-" yaml:"-"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:       LogLevelInfo,
		LogFormat:      LogFormatText,
		BaseDir:        ".",
		InternalSource: DefaultInternalSource,
		InternalOutput: DefaultInternalOutput,
		ExternalSource: DefaultExternalSource,
		ExternalOutput: DefaultExternalOutput,
		Tool:           DefaultTool,
		ToolVersion:    DefaultToolVersion,
		Extension:      DefaultExtension,
		Debounce:       DefaultDebounce,
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	if strings.TrimSpace(c.Tool) == "" {
		return errors.New("tool must not be empty")
	}

	ext := strings.TrimPrefix(c.Extension, ".")
	if ext == "" || strings.ContainsAny(ext, `/\.`) {
		return fmt.Errorf("invalid extension %q", c.Extension)
	}

	if _, err := semver.NewConstraint(c.ToolVersion); err != nil {
		return fmt.Errorf("invalid tool version %q: %w", c.ToolVersion, err)
	}

	if c.Debounce < 0 {
		return fmt.Errorf("invalid debounce %s: must not be negative", c.Debounce)
	}

	dirs := []struct{ name, value string }{
		{"internal-source", c.InternalSource},
		{"internal-output", c.InternalOutput},
		{"external-source", c.ExternalSource},
		{"external-output", c.ExternalOutput},
	}

	for _, dir := range dirs {
		if strings.TrimSpace(dir.value) == "" {
			return fmt.Errorf("%s must not be empty", dir.name)
		}
	}

	return nil
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// Roots resolves the four build directories against BaseDir.
func (c *Config) Roots() (layout.Roots, error) {
	return layout.NewRoots(c.BaseDir, c.InternalSource, c.InternalOutput, c.ExternalSource, c.ExternalOutput)
}

// Mapper returns the path mapper for this configuration.
func (c *Config) Mapper() (*layout.Mapper, error) {
	roots, err := c.Roots()
	if err != nil {
		return nil, err
	}

	return layout.NewMapper(roots, c.Extension), nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	view := struct {
		Config   `yaml:",inline"`
		Debounce string `yaml:"debounce"`
	}{
		Config:   *c,
		Debounce: c.Debounce.String(),
	}

	data, err := yaml.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}

	return data, nil
}

// Load initialises configuration from flags, environment variables, an
// optional dotenv file and an optional config file. A fresh viper instance
// is used on every call so that Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile, envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	v := viper.New()

	setDefaults(v)
	configureEnv(v)

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadEnvFile reads a dotenv file into the process environment. An explicit
// file must exist; otherwise ./.env is read when present. Variables that are
// already set are never overridden.
func loadEnvFile(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("reading env file %q: %w", envFile, err)
		}

		return nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("reading env file .env: %w", err)
		}
	}

	return nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)
	v.SetDefault("no-color", d.NoColor)
	v.SetDefault("quiet", d.Quiet)
	v.SetDefault("base-dir", d.BaseDir)
	v.SetDefault("internal-source", d.InternalSource)
	v.SetDefault("internal-output", d.InternalOutput)
	v.SetDefault("external-source", d.ExternalSource)
	v.SetDefault("external-output", d.ExternalOutput)
	v.SetDefault("tool", d.Tool)
	v.SetDefault("tool-args", []string{})
	v.SetDefault("tool-version", d.ToolVersion)
	v.SetDefault("extension", d.Extension)
	v.SetDefault("debounce", d.Debounce)
}

// configureEnv sets up environment variable support.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("STYLEWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// configureFile sets up the config file source.
func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	// Auto-discovery mode.
	v.SetConfigName(".stylewatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "stylewatch"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}

		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags walks from cmd up to the root and binds all PersistentFlags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}
