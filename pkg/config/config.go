// Package config loads idlewatch settings from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Which transitions produce notifications.
const (
	NotifyIdle   = "idle"
	NotifyActive = "active"
	NotifyBoth   = "both"
)

// Activity source names.
const (
	SourceAuto  = "auto"
	SourceNone  = "none"
	SourceTmux  = "tmux"
	SourceIoreg = "ioreg"
	SourceDBus  = "dbus"
)

var knownSources = []string{SourceAuto, SourceNone, SourceTmux, SourceIoreg, SourceDBus}

// Config holds all configuration for idlewatch
type Config struct {
	// Detection settings
	Threshold    time.Duration `yaml:"threshold" env:"IDLEWATCH_THRESHOLD"`
	PollInterval time.Duration `yaml:"poll_interval" env:"IDLEWATCH_POLL_INTERVAL"`
	Source       string        `yaml:"source" env:"IDLEWATCH_SOURCE"`

	// Notification settings
	NtfyTopic  string `yaml:"ntfy_topic" env:"IDLEWATCH_TOPIC"`
	NtfyServer string `yaml:"ntfy_server" env:"IDLEWATCH_SERVER"`
	NotifyOn   string `yaml:"notify_on" env:"IDLEWATCH_NOTIFY_ON"`

	// Behavior flags
	Quiet         bool `yaml:"quiet" env:"IDLEWATCH_QUIET"`
	StartupNotify bool `yaml:"startup_notify" env:"IDLEWATCH_STARTUP"`
	StatusLine    bool `yaml:"status_line"`

	// Rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Batching
	BatchWindow time.Duration `yaml:"batch_window"`

	Log LogConfig `yaml:"log"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	MaxMessages int           `yaml:"max_messages"`
}

// LogConfig controls log output.
type LogConfig struct {
	Verbose bool `yaml:"verbose" env:"IDLEWATCH_DEBUG"`
	JSON    bool `yaml:"json"`

	// File receives debug logs as JSON lines; useful when a wrapped command
	// owns the terminal.
	File string `yaml:"file"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Threshold:    5 * time.Minute,
		PollInterval: 5 * time.Second,
		Source:       SourceAuto,
		NtfyServer:   "https://ntfy.sh",
		NotifyOn:     NotifyIdle,
		StatusLine:   true,
		RateLimit: RateLimitConfig{
			Window:      1 * time.Minute,
			MaxMessages: 5,
		},
	}
}

// Load loads configuration from the default file location and environment
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path falls back to
// the default location; an explicit path must exist.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = getConfigPath()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil && (explicit || !os.IsNotExist(err)) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if path := os.Getenv("IDLEWATCH_CONFIG"); path != "" {
		return path
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "idlewatch", "config.yaml")
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "idlewatch", "config.yaml")
	}

	return ""
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - The config file path comes from trusted sources (flag, env var or standard locations)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	if err := envDuration("IDLEWATCH_THRESHOLD", &cfg.Threshold); err != nil {
		return err
	}
	if err := envDuration("IDLEWATCH_POLL_INTERVAL", &cfg.PollInterval); err != nil {
		return err
	}

	if source := os.Getenv("IDLEWATCH_SOURCE"); source != "" {
		cfg.Source = source
	}

	if topic := os.Getenv("IDLEWATCH_TOPIC"); topic != "" {
		cfg.NtfyTopic = topic
	}

	if server := os.Getenv("IDLEWATCH_SERVER"); server != "" {
		cfg.NtfyServer = server
	}

	if notifyOn := os.Getenv("IDLEWATCH_NOTIFY_ON"); notifyOn != "" {
		cfg.NotifyOn = strings.ToLower(notifyOn)
	}

	if err := envBool("IDLEWATCH_QUIET", &cfg.Quiet); err != nil {
		return err
	}
	if err := envBool("IDLEWATCH_STARTUP", &cfg.StartupNotify); err != nil {
		return err
	}

	// Only ever switches debug output on.
	if os.Getenv("IDLEWATCH_DEBUG") == "1" {
		cfg.Log.Verbose = true
	}

	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	switch v {
	case "":
	case "true", "1", "yes":
		*dst = true
	case "false", "0", "no":
		*dst = false
	default:
		return fmt.Errorf("invalid %s value: %q (use true/false)", key, v)
	}
	return nil
}

// Validate checks the configuration. It is run by Load and again by callers
// that override fields afterwards.
func (c *Config) Validate() error {
	if c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	if c.PollInterval > c.Threshold {
		return fmt.Errorf("poll_interval (%v) must not exceed threshold (%v)", c.PollInterval, c.Threshold)
	}

	if c.Source != "" && !slices.Contains(knownSources, c.Source) {
		return fmt.Errorf("unknown source %q (use one of %s)", c.Source, strings.Join(knownSources, ", "))
	}

	switch c.NotifyOn {
	case NotifyIdle, NotifyActive, NotifyBoth:
	default:
		return fmt.Errorf("unknown notify_on %q (use idle, active or both)", c.NotifyOn)
	}

	if c.RateLimit.MaxMessages < 0 {
		return fmt.Errorf("rate_limit.max_messages must be non-negative")
	}

	if c.RateLimit.Window < 0 {
		return fmt.Errorf("rate_limit.window must be non-negative")
	}

	if c.BatchWindow < 0 {
		return fmt.Errorf("batch_window must be non-negative")
	}

	return nil
}
