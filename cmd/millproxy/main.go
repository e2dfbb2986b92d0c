package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/okrause/millproxy/internal/config"
	"github.com/okrause/millproxy/internal/console"
	"github.com/okrause/millproxy/internal/radio"
	"github.com/okrause/millproxy/internal/relay"
	"github.com/okrause/millproxy/internal/status"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/millproxy/config.yaml)")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	sink := console.New(os.Stdout)
	printBanner(sink)

	central, err := radio.NewCentral()
	if err != nil {
		log.Fatalf("Failed to open central radio: %v\n\nCheck that a Bluetooth adapter is present and powered on.", err)
	}

	peripheral := radio.NewPeripheral(cfg.Proxy.HCIDevice)

	var indicator relay.StatusIndicator = status.Noop{}
	if cfg.LED.Path != "" {
		indicator = status.NewLED(cfg.LED.Path)
		slog.Info("[main] status LED enabled", "path", cfg.LED.Path)
	}

	proxy := relay.New(central, peripheral, sink, indicator)
	if err := proxy.Start(cfg.Board.NameFilter, cfg.Proxy.LocalName); err != nil {
		log.Fatalf("Failed to start proxy: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go proxy.RunStatusLoop(ctx, cfg.StatusInterval())

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	slog.Info("[main] shutting down", "signal", sig.String())
	cancel()

	if err := central.Disconnect(); err != nil {
		slog.Warn("[main] disconnect failed", "error", err)
	}
	if err := peripheral.StopAdvertising(); err != nil {
		slog.Warn("[main] stop advertising failed", "error", err)
	}
	sink.LogStatus("Proxy stopped")
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup summary on the traffic console.
func printBanner(c *console.Console) {
	c.Printf("\n")
	c.Printf("============================================\n")
	c.Printf("  Millennium BLE Proxy\n")
	c.Printf("============================================\n")
	c.Printf("\n")
	c.Printf("This proxy sits between a chess app and a\n")
	c.Printf("real Millennium ChessLink board, logging\n")
	c.Printf("all BLE traffic for protocol analysis.\n")
	c.Printf("\n")
	c.Printf("Traffic format:\n")
	c.Printf("  [timestamp] APP->BOARD: xx xx xx ...\n")
	c.Printf("  [timestamp] BOARD->APP: xx xx xx ...\n")
	c.Printf("  [timestamp] STATUS: status message\n")
	c.Printf("\n")
	c.Printf("============================================\n")
}
