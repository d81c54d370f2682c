package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultServerURL is the local-development fallback used when no server is
// configured.
const DefaultServerURL = "http://localhost:5000"

// Config represents the global ~/.chatlink/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	ServerURL      string `toml:"server_url"`

	ReconnectDelayMs     int `toml:"reconnect_delay_ms"`
	ReconnectMaxAttempts int `toml:"reconnect_max_attempts"`

	TypingTTLMs      int     `toml:"typing_ttl_ms"`
	TypingEventsPerS float64 `toml:"typing_events_per_sec"`

	ArchiveEnabled bool   `toml:"archive_enabled"`
	MetricsAddr    string `toml:"metrics_addr"`
}

// Default returns a config with the built-in defaults applied.
func Default() *Config {
	return &Config{
		DefaultSession:       "main",
		ServerURL:            DefaultServerURL,
		ReconnectDelayMs:     2000,
		ReconnectMaxAttempts: 5,
		TypingTTLMs:          1000,
		TypingEventsPerS:     2,
		ArchiveEnabled:       true,
	}
}

// Load reads config from the given path. A missing file is not an error:
// the defaults are returned so a fresh install works without any setup.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// applyDefaults fills zero-valued fields so a sparse config file still
// yields a usable engine.
func (c *Config) applyDefaults() {
	d := Default()
	if c.DefaultSession == "" {
		c.DefaultSession = d.DefaultSession
	}
	if c.ServerURL == "" {
		c.ServerURL = d.ServerURL
	}
	if c.ReconnectDelayMs <= 0 {
		c.ReconnectDelayMs = d.ReconnectDelayMs
	}
	if c.ReconnectMaxAttempts <= 0 {
		c.ReconnectMaxAttempts = d.ReconnectMaxAttempts
	}
	if c.TypingTTLMs <= 0 {
		c.TypingTTLMs = d.TypingTTLMs
	}
	if c.TypingEventsPerS <= 0 {
		c.TypingEventsPerS = d.TypingEventsPerS
	}
}

// ReconnectDelay returns the reconnect delay as a duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

// TypingTTL returns the typing indicator lifetime as a duration.
func (c *Config) TypingTTL() time.Duration {
	return time.Duration(c.TypingTTLMs) * time.Millisecond
}
