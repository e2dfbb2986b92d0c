package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Board    BoardConfig `yaml:"board"`
	Proxy    ProxyConfig `yaml:"proxy"`
	LED      LEDConfig   `yaml:"led"`
	LogLevel string      `yaml:"log_level"`
}

// BoardConfig selects the real board on the central side.
type BoardConfig struct {
	// NameFilter is a case-insensitive substring matched against
	// advertised device names. Advertisements carrying the Millennium
	// service UUID always match regardless of name.
	NameFilter string `yaml:"name_filter"`
}

// ProxyConfig holds the app-facing peripheral settings.
type ProxyConfig struct {
	// LocalName is the advertised device name. The real board uses
	// "MILLENNIUM CHESS"; apps that filter by name need the default.
	LocalName string `yaml:"local_name"`

	// HCIDevice is the index of the HCI controller used for the
	// peripheral role; -1 tries all. The central role takes the system
	// default adapter, so a dual-role setup needs two controllers.
	HCIDevice int `yaml:"hci_device"`

	// StatusIntervalMS is the poll interval for the status indicator,
	// in milliseconds.
	StatusIntervalMS int `yaml:"status_interval_ms"`
}

// LEDConfig holds status LED settings.
type LEDConfig struct {
	// Path is a sysfs LED brightness file, e.g.
	// /sys/class/leds/led0/brightness. Empty disables the LED.
	Path string `yaml:"path"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "millproxy")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Board: BoardConfig{
			NameFilter: "MILLENNIUM",
		},
		Proxy: ProxyConfig{
			LocalName:        "MILLENNIUM CHESS",
			HCIDevice:        -1,
			StatusIntervalMS: 50,
		},
		LED: LEDConfig{
			Path: "",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in led.path is expanded to the user's home
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.LED.Path = expandTilde(cfg.LED.Path)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Proxy.LocalName == "" {
		return fmt.Errorf("proxy.local_name must not be empty")
	}

	if c.Proxy.HCIDevice < -1 {
		return fmt.Errorf("proxy.hci_device must be -1 or a device index, got %d", c.Proxy.HCIDevice)
	}

	if c.Proxy.StatusIntervalMS <= 0 {
		return fmt.Errorf("proxy.status_interval_ms must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// StatusInterval returns the status poll interval as a duration.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Proxy.StatusIntervalMS) * time.Millisecond
}

// ParseLogLevel maps a config log level string to a slog.Level.
// Unknown strings map to info.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
