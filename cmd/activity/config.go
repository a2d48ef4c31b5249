package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/activity-go/activity/store"
)

// Config holds CLI settings.
type Config struct {
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	// Store is "memory", "mysql:<dsn>", or a SQLite file path. Empty disables
	// recording.
	Store    string `yaml:"store"`
	MaxSteps int    `yaml:"maxSteps"`
}

// LoadConfig loads configuration from a YAML file and environment overrides.
// A missing file at the default path is not an error.
func LoadConfig(path string, explicit bool) (*Config, error) {
	cfg := &Config{
		LogLevel:  "info",
		LogFormat: "text",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case explicit || !os.IsNotExist(err):
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if v := os.Getenv("ACTIVITY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ACTIVITY_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("ACTIVITY_STORE_DSN"); v != "" {
		cfg.Store = v
	}
	if v := os.Getenv("ACTIVITY_MAX_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("ACTIVITY_MAX_STEPS: %w", err)
		}
		cfg.MaxSteps = n
	}

	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	if cfg.MaxSteps < 0 {
		return nil, errors.New("maxSteps cannot be negative")
	}
	return cfg, nil
}

// DefaultConfigPath returns the default location for the CLI config file.
func DefaultConfigPath() string {
	if path := os.Getenv("ACTIVITY_CONFIG"); path != "" {
		return path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".activity", "config.yaml")
}

// Logger returns a structured logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	lvl, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// OpenStore opens the configured trace store. It returns nil when recording
// is disabled.
func (c *Config) OpenStore() (store.Store, error) {
	switch {
	case c.Store == "":
		return nil, nil
	case c.Store == "memory":
		return store.NewMemStore(), nil
	case strings.HasPrefix(c.Store, "mysql:"):
		st, err := store.NewMySQLStore(strings.TrimPrefix(c.Store, "mysql:"))
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		st, err := store.NewSQLiteStore(strings.TrimPrefix(c.Store, "sqlite:"))
		if err != nil {
			return nil, err
		}
		return st, nil
	}
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
