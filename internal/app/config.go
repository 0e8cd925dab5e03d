package app

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Arielbs/claude-usage-monitor/internal/anthropic"
	"github.com/Arielbs/claude-usage-monitor/internal/credstore"
	"github.com/Arielbs/claude-usage-monitor/internal/monitor"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// CredentialStorageType represents the supported credential store backends.
type CredentialStorageType string

const (
	CredentialStorageTypeKeyring CredentialStorageType = "keyring"
	CredentialStorageTypeFile    CredentialStorageType = "file"
)

// Default configuration values
const (
	DefaultConfigLogLevel           = "info"
	DefaultConfigLogFormat          = LogFormatText
	DefaultConfigLogExporter        = "none"
	DefaultConfigServerHost         = "127.0.0.1"
	DefaultConfigServerPort         = 4154
	DefaultConfigShutdownTimeout    = 5 * time.Second
	DefaultConfigPollInterval       = monitor.DefaultInterval
	DefaultConfigAPIBaseURL         = anthropic.DefaultBaseURL
	DefaultConfigCredentialsStorage = CredentialStorageTypeKeyring
)

// ServerConfig holds control server configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// PollConfig holds usage polling configuration.
type PollConfig struct {
	Interval time.Duration `json:"interval"`
}

// APIConfig holds upstream API configuration.
type APIConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
}

// CredentialsConfig describes where the shared OAuth credential record
// lives.
type CredentialsConfig struct {
	Storage CredentialStorageType `json:"storage" validate:"required,oneof=keyring file"`

	// Keyring storage settings. Service defaults to the entry Claude Code
	// maintains; User is usually empty.
	Service string `json:"service,omitempty"`
	User    string `json:"user,omitempty"`

	// File storage setting: path to the credential JSON file.
	File string `json:"file,omitempty"`
}

// NewStore creates a credential store from the configuration.
func (c *CredentialsConfig) NewStore() (credstore.Store, error) {
	switch c.Storage {
	case CredentialStorageTypeKeyring:
		return credstore.NewKeyringStore(c.Service, c.User)
	case CredentialStorageTypeFile:
		return credstore.NewFileStore(c.File)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage)
	}
}

// BrowserConfig holds Chrome integration configuration.
type BrowserConfig struct {
	Enabled bool `json:"enabled"`
}

// Config holds the application's configuration.
type Config struct {
	LogLevel    string            `json:"log_level" validate:"oneof=debug info warn error"`
	LogFormat   LogFormat         `json:"log_format" validate:"oneof=text json"`
	LogExporter string            `json:"log_exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
	Server      ServerConfig      `json:"server"`
	Shutdown    ShutdownConfig    `json:"shutdown"`
	Poll        PollConfig        `json:"poll"`
	API         APIConfig         `json:"api"`
	Credentials CredentialsConfig `json:"credentials"`
	Browser     BrowserConfig     `json:"browser"`
}

// Level parses LogLevel into a slog.Level. Call after ApplyDefaults.
func (c *Config) Level() slog.Level {
	var level slog.Level
	// Invalid values are caught by Validate; fall back to Info here.
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogLevel == "" {
		c.LogLevel = DefaultConfigLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogExporter == "" {
		c.LogExporter = DefaultConfigLogExporter
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = DefaultConfigPollInterval
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultConfigAPIBaseURL
	}
	if c.Credentials.Storage == "" {
		c.Credentials.Storage = DefaultConfigCredentialsStorage
	}

	// Dynamic defaults based on storage type
	switch c.Credentials.Storage {
	case CredentialStorageTypeKeyring:
		if c.Credentials.Service == "" {
			c.Credentials.Service = credstore.DefaultService
		}
		// User stays empty; Claude Code writes its entry without an account name.
	case CredentialStorageTypeFile:
		if c.Credentials.File == "" {
			path, err := credstore.DefaultCredentialsFile()
			if err != nil {
				return fmt.Errorf("credentials.file required (auto-detect failed: %w)", err)
			}
			c.Credentials.File = path
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Poll.Interval < time.Second {
		return errors.New("poll.interval must be at least one second")
	}

	switch c.Credentials.Storage {
	case CredentialStorageTypeKeyring:
		if c.Credentials.Service == "" {
			return errors.New("service required for keyring storage")
		}
	case CredentialStorageTypeFile:
		if c.Credentials.File == "" {
			return errors.New("file path required for file storage")
		}
	}

	return nil
}
