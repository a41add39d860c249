// Package config loads rulecore runtime settings: defaults, then an optional
// YAML file, then RULECORE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

var ErrLogLevel = errors.New("unknown log level")

// Config holds the settings a rulecore run is started with.
type Config struct {
	// ContentDir is the directory of .lua battle content.
	ContentDir string `yaml:"content_dir" env:"RULECORE_CONTENT_DIR"`
	// Seed drives every random draw. Zero picks a seed at startup.
	Seed     int64  `yaml:"seed" env:"RULECORE_SEED"`
	LogLevel string `yaml:"log_level" env:"RULECORE_LOG_LEVEL"`
	LogFile  string `yaml:"log_file" env:"RULECORE_LOG_FILE"`
	SaveDir  string `yaml:"save_dir" env:"RULECORE_SAVE_DIR"`
	Trace    bool   `yaml:"trace" env:"RULECORE_TRACE"`
	Plain    bool   `yaml:"plain" env:"RULECORE_PLAIN"`
	// MaxDepth caps nested dispatch. Zero uses the dispatcher default.
	MaxDepth int `yaml:"max_depth" env:"RULECORE_MAX_DEPTH"`
}

// Default returns the built-in settings.
func Default() Config {
	saveDir := ".rulecore/saves"
	if home, err := os.UserHomeDir(); err == nil {
		saveDir = filepath.Join(home, ".rulecore", "saves")
	}
	return Config{
		LogLevel: "warn",
		SaveDir:  saveDir,
	}
}

// Load returns defaults overlaid with the YAML file at path and then the
// environment. An empty path or a missing file means defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if _, err := cfg.Level(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Level maps LogLevel to a slog level.
func (c Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("%q: %w", c.LogLevel, ErrLogLevel)
	}
}
