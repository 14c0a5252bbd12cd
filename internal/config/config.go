// Package config loads and validates the application configuration from
// a TOML file.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/busybox42/lettera/internal/api"
	"github.com/busybox42/lettera/internal/cache"
	"github.com/busybox42/lettera/internal/dispatch"
	"github.com/busybox42/lettera/internal/lookup"
	"github.com/busybox42/lettera/internal/store"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server struct {
		Hostname string `toml:"hostname"`
	} `toml:"server"`

	// HTTP API configuration
	API api.Config `toml:"api"`

	// Database configuration
	Database store.Config `toml:"database"`

	// Shared cache for the tag-name catalog
	Cache cache.Config `toml:"cache"`

	// Collaborating services
	Lookup struct {
		Applications LookupConfig `toml:"applications"`
		Templates    LookupConfig `toml:"templates"`
	} `toml:"lookup"`

	// Outbound mail configuration
	Send struct {
		Level     string              `toml:"level"`     // debug, log, prod
		Transport string              `toml:"transport"` // smtp, mock
		SMTP      dispatch.SMTPConfig `toml:"smtp"`
	} `toml:"send"`

	// Logging configuration
	Logging struct {
		Level  string `toml:"level"`  // debug, info, warn, error
		Format string `toml:"format"` // json, text
	} `toml:"logging"`
}

// LookupConfig configures one collaborating HTTP service.
type LookupConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ClientConfig converts to the lookup package's configuration.
func (lc LookupConfig) ClientConfig() lookup.Config {
	return lookup.Config{
		BaseURL: lc.BaseURL,
		Timeout: time.Duration(lc.TimeoutSeconds) * time.Second,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Hostname = "localhost"

	cfg.API.Enabled = true
	cfg.API.ListenAddr = "127.0.0.1:8080"

	cfg.Database.Type = "sqlite"
	cfg.Database.Name = "letters"
	cfg.Database.Path = "./lettera.db"

	cfg.Cache.Enabled = false
	cfg.Cache.Type = "memory"
	cfg.Cache.Name = "tags"

	cfg.Lookup.Applications.TimeoutSeconds = 10
	cfg.Lookup.Templates.TimeoutSeconds = 10

	cfg.Send.Level = "debug"
	cfg.Send.Transport = "smtp"
	cfg.Send.SMTP.Host = "localhost"
	cfg.Send.SMTP.Port = 25

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

// FindConfigFile looks for a configuration file in common locations
func FindConfigFile(configPath string) (string, error) {
	// If a specific path is provided, check only that
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
		return "", fmt.Errorf("config file not found at specified path: %s", configPath)
	}

	locations := []string{
		"./lettera.conf",
		"./config/lettera.conf",
		os.ExpandEnv("$HOME/.lettera.conf"),
		"/etc/lettera/lettera.conf",
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc, nil
		}
	}

	return "", fmt.Errorf("no config file found")
}

// LoadConfig loads a configuration from a file, falling back to defaults
// when no file can be found.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	configFile, err := FindConfigFile(configPath)
	if err != nil {
		if configPath != "" {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing TOML configuration: %w", err)
	}

	result := cfg.Validate()
	if !result.Valid {
		return nil, fmt.Errorf("configuration validation failed: %s", result.Errors[0].Error())
	}

	return cfg, nil
}

// ValidationError is one configuration problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult collects configuration problems.
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// AddError records an error and marks the result invalid.
func (vr *ValidationResult) AddError(field, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning records a warning.
func (vr *ValidationResult) AddWarning(field, message string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Message: message})
}

// Validate checks the configuration for problems.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	if c.API.Enabled && c.API.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.API.ListenAddr); err != nil {
			result.AddError("api.listen_addr", fmt.Sprintf("invalid listen address: %v", err))
		}
	}

	switch c.Database.Type {
	case "", "sqlite", "mysql", "postgres":
	default:
		result.AddError("database.type", fmt.Sprintf("unsupported store type: %s", c.Database.Type))
	}
	if c.Database.Type == "mysql" || c.Database.Type == "postgres" {
		if c.Database.Host == "" {
			result.AddError("database.host", "host is required for "+c.Database.Type)
		}
		if c.Database.Username == "" {
			result.AddWarning("database.username", "no username configured")
		}
	}

	if c.Cache.Enabled {
		switch c.Cache.Type {
		case "", "memory", "redis", "memcached":
		default:
			result.AddError("cache.type", fmt.Sprintf("unsupported cache type: %s", c.Cache.Type))
		}
		if (c.Cache.Type == "redis" || c.Cache.Type == "memcached") && c.Cache.Host == "" {
			result.AddError("cache.host", "host is required for "+c.Cache.Type)
		}
	}

	if _, err := dispatch.ParseSendLevel(c.Send.Level); err != nil {
		result.AddError("send.level", err.Error())
	}
	switch c.Send.Transport {
	case "", "smtp", "mock":
	default:
		result.AddError("send.transport", fmt.Sprintf("unsupported transport: %s", c.Send.Transport))
	}

	if c.Lookup.Applications.BaseURL == "" {
		result.AddWarning("lookup.applications.base_url", "no application registry configured; applicationId validation will fail")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		result.AddError("logging.level", fmt.Sprintf("unknown log level: %s", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		result.AddError("logging.format", fmt.Sprintf("unknown log format: %s", c.Logging.Format))
	}

	return result
}

// SaveConfig writes the configuration to a file as TOML.
func (c *Config) SaveConfig(configPath string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig writes the default configuration to a file.
func CreateDefaultConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	return DefaultConfig().SaveConfig(configPath)
}
