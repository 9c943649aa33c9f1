// Package config loads Switchboard configuration from YAML files with
// environment variable overrides.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultBind            = "127.0.0.1:3000"
	DefaultRequestTimeout  = 30
	DefaultBusTimeout      = 30
	DefaultMaxBodyBytes    = 1 << 20
	DefaultLogLevel        = "info"
	DefaultBusClientName   = "switchboard"
	DefaultHostSubjectRoot = "assistant"
)

// Config represents the complete Switchboard configuration
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Bus     BusConfig     `yaml:"bus"`
	Logging LoggingConfig `yaml:"logging"`
}

// GatewayConfig controls the HTTP command gateway.
type GatewayConfig struct {
	// Bind is the listen address, loopback by default.
	Bind string `yaml:"bind"`

	// AllowedOrigins are origins permitted by the CORS middleware.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// RequestTimeoutSecs bounds command execution per request.
	RequestTimeoutSecs int `yaml:"request_timeout_secs"`

	// MaxBodyBytes caps the accepted POST body size.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// BusConfig controls the message bus connection to the assistant host.
type BusConfig struct {
	// URL is the NATS server URL. Empty selects the in-memory bus.
	URL string `yaml:"url"`

	// Name is the bus client identifier.
	Name string `yaml:"name"`

	// TimeoutSecs is the request/reply timeout toward the host.
	TimeoutSecs int `yaml:"timeout_secs"`

	// SubjectRoot is the root token of host RPC subjects.
	SubjectRoot string `yaml:"subject_root"`
}

// LoggingConfig controls the structured event log.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	logDir := "logs"
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		logDir = filepath.Join(home, ".switchboard", "logs")
	}
	return &Config{
		Gateway: GatewayConfig{
			Bind:               DefaultBind,
			AllowedOrigins:     []string{"http://localhost", "http://127.0.0.1"},
			RequestTimeoutSecs: DefaultRequestTimeout,
			MaxBodyBytes:       DefaultMaxBodyBytes,
		},
		Bus: BusConfig{
			Name:        DefaultBusClientName,
			TimeoutSecs: DefaultBusTimeout,
			SubjectRoot: DefaultHostSubjectRoot,
		},
		Logging: LoggingConfig{
			Dir:   logDir,
			Level: DefaultLogLevel,
		},
	}
}

// Load builds the configuration from defaults, the user config
// (~/.switchboard/config.yaml), the project config (./.switchboard/config.yaml)
// and environment overrides, in that order.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".switchboard", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading user config: %w", err)
		}
	}

	projectConfigPath := filepath.Join(".", ".switchboard", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads the configuration from an explicit file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	mergeConfigs(cfg, &override)
	return nil
}

// mergeConfigs merges override into base. Zero values leave base untouched.
func mergeConfigs(base, override *Config) {
	if override == nil {
		return
	}

	if override.Gateway.Bind != "" {
		base.Gateway.Bind = override.Gateway.Bind
	}
	if len(override.Gateway.AllowedOrigins) > 0 {
		base.Gateway.AllowedOrigins = append([]string{}, override.Gateway.AllowedOrigins...)
	}
	if override.Gateway.RequestTimeoutSecs != 0 {
		base.Gateway.RequestTimeoutSecs = override.Gateway.RequestTimeoutSecs
	}
	if override.Gateway.MaxBodyBytes != 0 {
		base.Gateway.MaxBodyBytes = override.Gateway.MaxBodyBytes
	}

	if override.Bus.URL != "" {
		base.Bus.URL = override.Bus.URL
	}
	if override.Bus.Name != "" {
		base.Bus.Name = override.Bus.Name
	}
	if override.Bus.TimeoutSecs != 0 {
		base.Bus.TimeoutSecs = override.Bus.TimeoutSecs
	}
	if override.Bus.SubjectRoot != "" {
		base.Bus.SubjectRoot = override.Bus.SubjectRoot
	}

	if override.Logging.Dir != "" {
		base.Logging.Dir = override.Logging.Dir
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
}

// applyEnvOverrides applies SWITCHBOARD_* environment variables on top of the
// merged file configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SWITCHBOARD_BIND"); v != "" {
		cfg.Gateway.Bind = v
	}
	if v := os.Getenv("SWITCHBOARD_NATS_URL"); v != "" {
		cfg.Bus.URL = v
	}
	if v := os.Getenv("SWITCHBOARD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SWITCHBOARD_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Gateway.Bind); err != nil {
		return fmt.Errorf("invalid gateway bind address %q: %w", c.Gateway.Bind, err)
	}
	if c.Gateway.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("gateway request_timeout_secs must be positive, got %d", c.Gateway.RequestTimeoutSecs)
	}
	if c.Gateway.MaxBodyBytes <= 0 {
		return fmt.Errorf("gateway max_body_bytes must be positive, got %d", c.Gateway.MaxBodyBytes)
	}
	if c.Bus.TimeoutSecs <= 0 {
		return fmt.Errorf("bus timeout_secs must be positive, got %d", c.Bus.TimeoutSecs)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	return nil
}
