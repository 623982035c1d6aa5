// Package config loads and validates the shulker.yml runtime configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shulkerdb/shulker/pkg/bridge"
)

// DefaultPath is where commands look for the config file unless --config is
// given.
const DefaultPath = "shulker.yml"

// Config is the top-level shulker.yml structure.
type Config struct {
	// Listen is the address the command transport binds to; the game
	// attaches with `/connect <listen>`.
	Listen string `yaml:"listen"`

	Bridge BridgeConfig `yaml:"bridge,omitempty"`
}

// BridgeConfig tunes the message bridge. Intervals are milliseconds, the
// unit the envelope timestamps use.
type BridgeConfig struct {
	OutboxTable       string `yaml:"outbox_table,omitempty"`
	InboxTable        string `yaml:"inbox_table,omitempty"`
	PollIntervalMs    int    `yaml:"poll_interval_ms,omitempty"`
	CleanupIntervalMs int    `yaml:"cleanup_interval_ms,omitempty"`
	RetentionMs       int    `yaml:"retention_ms,omitempty"`
	ProcessedCap      int    `yaml:"processed_cap,omitempty"`
	HandlerTimeoutMs  int    `yaml:"handler_timeout_ms,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Listen: "0.0.0.0:19131",
		Bridge: BridgeConfig{
			OutboxTable:       "bridge_outbox",
			InboxTable:        "bridge_inbox",
			PollIntervalMs:    1000,
			CleanupIntervalMs: 30000,
			RetentionMs:       300000,
			ProcessedCap:      1000,
		},
	}
}

// Load reads and validates a config file. A missing file at the default
// path yields Default() rather than an error; an explicitly named file must
// exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultPath {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values and cross-field constraints.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.Bridge.OutboxTable == "" || c.Bridge.InboxTable == "" {
		return fmt.Errorf("bridge table names cannot be empty")
	}
	if c.Bridge.OutboxTable == c.Bridge.InboxTable {
		return fmt.Errorf("bridge outbox and inbox tables must differ (got %q for both)", c.Bridge.OutboxTable)
	}
	if c.Bridge.PollIntervalMs < 0 || c.Bridge.CleanupIntervalMs < 0 ||
		c.Bridge.RetentionMs < 0 || c.Bridge.ProcessedCap < 0 || c.Bridge.HandlerTimeoutMs < 0 {
		return fmt.Errorf("bridge intervals and caps cannot be negative")
	}
	return nil
}

// BridgeSettings converts the yaml fields into a bridge.Config.
func (c *Config) BridgeSettings() bridge.Config {
	return bridge.Config{
		OutboxTable:     c.Bridge.OutboxTable,
		InboxTable:      c.Bridge.InboxTable,
		PollInterval:    time.Duration(c.Bridge.PollIntervalMs) * time.Millisecond,
		CleanupInterval: time.Duration(c.Bridge.CleanupIntervalMs) * time.Millisecond,
		Retention:       time.Duration(c.Bridge.RetentionMs) * time.Millisecond,
		ProcessedCap:    c.Bridge.ProcessedCap,
		HandlerTimeout:  time.Duration(c.Bridge.HandlerTimeoutMs) * time.Millisecond,
	}
}
