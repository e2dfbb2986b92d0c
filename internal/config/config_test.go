package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Board.NameFilter != "MILLENNIUM" {
		t.Errorf("Board.NameFilter = %q, want %q", cfg.Board.NameFilter, "MILLENNIUM")
	}
	if cfg.Proxy.LocalName != "MILLENNIUM CHESS" {
		t.Errorf("Proxy.LocalName = %q, want %q", cfg.Proxy.LocalName, "MILLENNIUM CHESS")
	}
	if cfg.Proxy.HCIDevice != -1 {
		t.Errorf("Proxy.HCIDevice = %d, want -1", cfg.Proxy.HCIDevice)
	}
	if cfg.Proxy.StatusIntervalMS != 50 {
		t.Errorf("Proxy.StatusIntervalMS = %d, want 50", cfg.Proxy.StatusIntervalMS)
	}
	if cfg.LED.Path != "" {
		t.Errorf("LED.Path = %q, want empty", cfg.LED.Path)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
board:
  name_filter: CHESSLINK
proxy:
  local_name: TEST PROXY
  hci_device: 1
  status_interval_ms: 100
led:
  path: /sys/class/leds/led0/brightness
log_level: debug
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Board.NameFilter != "CHESSLINK" {
		t.Errorf("Board.NameFilter = %q, want %q", cfg.Board.NameFilter, "CHESSLINK")
	}
	if cfg.Proxy.LocalName != "TEST PROXY" {
		t.Errorf("Proxy.LocalName = %q, want %q", cfg.Proxy.LocalName, "TEST PROXY")
	}
	if cfg.Proxy.HCIDevice != 1 {
		t.Errorf("Proxy.HCIDevice = %d, want 1", cfg.Proxy.HCIDevice)
	}
	if cfg.Proxy.StatusIntervalMS != 100 {
		t.Errorf("Proxy.StatusIntervalMS = %d, want 100", cfg.Proxy.StatusIntervalMS)
	}
	if cfg.LED.Path != "/sys/class/leds/led0/brightness" {
		t.Errorf("LED.Path = %q", cfg.LED.Path)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	yamlContent := `
board:
  name_filter: CHESSNUT
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Board.NameFilter != "CHESSNUT" {
		t.Errorf("Board.NameFilter = %q, want %q", cfg.Board.NameFilter, "CHESSNUT")
	}
	if cfg.Proxy.LocalName != "MILLENNIUM CHESS" {
		t.Errorf("Proxy.LocalName = %q, want default", cfg.Proxy.LocalName)
	}
	if cfg.Proxy.StatusIntervalMS != 50 {
		t.Errorf("Proxy.StatusIntervalMS = %d, want default 50", cfg.Proxy.StatusIntervalMS)
	}
}

func TestLoadExpandsTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home directory")
	}

	yamlContent := `
led:
  path: ~/leds/brightness
`
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := filepath.Join(home, "leds", "brightness")
	if cfg.LED.Path != want {
		t.Errorf("LED.Path = %q, want %q", cfg.LED.Path, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() should fail for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("proxy: [not a map"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(cfgPath)
	if err == nil {
		t.Error("Load() should fail for invalid YAML")
	}
	if err != nil && !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("error = %v, want parse error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty name filter ok", func(c *Config) { c.Board.NameFilter = "" }, false},
		{"empty local name", func(c *Config) { c.Proxy.LocalName = "" }, true},
		{"bad hci device", func(c *Config) { c.Proxy.HCIDevice = -2 }, true},
		{"zero status interval", func(c *Config) { c.Proxy.StatusIntervalMS = 0 }, true},
		{"negative status interval", func(c *Config) { c.Proxy.StatusIntervalMS = -10 }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStatusInterval(t *testing.T) {
	cfg := Default()
	cfg.Proxy.StatusIntervalMS = 200
	if got := cfg.StatusInterval(); got != 200*time.Millisecond {
		t.Errorf("StatusInterval() = %v, want 200ms", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := ParseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
