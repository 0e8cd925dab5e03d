package app

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	if cfg.LogLevel != "info" || cfg.LogFormat != LogFormatText {
		t.Errorf("logging defaults = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 4154 {
		t.Errorf("server defaults = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Poll.Interval != 60*time.Second {
		t.Errorf("poll interval = %v", cfg.Poll.Interval)
	}
	if cfg.Credentials.Storage != CredentialStorageTypeKeyring {
		t.Errorf("credentials storage = %q", cfg.Credentials.Storage)
	}
	if cfg.Credentials.Service != "Claude Code-credentials" {
		t.Errorf("credentials service = %q", cfg.Credentials.Service)
	}
	if !strings.HasPrefix(cfg.API.BaseURL, "https://api.anthropic.com") {
		t.Errorf("api base url = %q", cfg.API.BaseURL)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestApplyDefaultsFillsCredentialFile(t *testing.T) {
	cfg := &Config{Credentials: CredentialsConfig{Storage: CredentialStorageTypeFile}}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults() error = %v", err)
	}

	if !strings.HasSuffix(cfg.Credentials.File, ".credentials.json") {
		t.Errorf("credentials file = %q", cfg.Credentials.File)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"bad exporter", func(c *Config) { c.LogExporter = "syslog" }},
		{"bad storage", func(c *Config) { c.Credentials.Storage = "vault" }},
		{"bad base url", func(c *Config) { c.API.BaseURL = "not a url" }},
		{"sub-second poll interval", func(c *Config) { c.Poll.Interval = 100 * time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			if err != nil {
				t.Fatalf("Default() error = %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestLevelParsesLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo}, // pre-defaults fallback
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.in}
		if got := cfg.Level(); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
