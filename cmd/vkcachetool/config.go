package main

import (
	"fmt"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"

	"github.com/DrGr4f1x/vkcache/resource"
)

// config holds the tool's TOML-configurable defaults.
//
//	pool_size = 32
//	verbose   = true
type config struct {
	PoolSize uint32 `toml:"pool_size"`
	Verbose  bool   `toml:"verbose"`
}

func defaultConfig() config {
	return config{
		PoolSize: resource.DefaultPoolSize,
	}
}

// loadConfig reads the TOML file at path, or returns defaults when path is
// empty.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = resource.DefaultPoolSize
	}
	return cfg, nil
}

// slogFrom adapts the console logger to the library's slog surface; the
// charm logger doubles as a slog.Handler.
func slogFrom(l *charmlog.Logger) *slog.Logger {
	return slog.New(l)
}
