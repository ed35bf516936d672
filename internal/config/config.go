// Package config loads venturechat client configuration.
// Configuration is read from .vchat/config.yaml (project-local) or
// ~/.vchat/config.yaml, with VCHAT_* environment variables taking
// precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all venturechat client configuration.
type Config struct {
	// API is the base URL of the forum REST API.
	API APIConfig `yaml:"api"`

	// UI settings for the terminal interface.
	UI UIConfig `yaml:"ui"`

	// Logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the backend endpoints.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	WSURL   string `yaml:"ws_url"`
	Timeout string `yaml:"timeout"`
}

// UIConfig configures the terminal UI.
type UIConfig struct {
	Theme string `yaml:"theme"` // "light" or "dark"
}

// LoggingConfig configures client-side logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug/info/warn/error
	File  string `yaml:"file"`  // optional log file path; empty logs to stderr
}

// Default returns the default configuration, pointing at a local
// development backend.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8000",
			WSURL:   "ws://localhost:8000",
			Timeout: "30s",
		},
		UI: UIConfig{
			Theme: "light",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Dir returns the directory where configuration is stored.
// A project-local .vchat directory wins over the home-level one.
func Dir() (string, error) {
	if cwd, err := os.Getwd(); err == nil {
		localDir := filepath.Join(cwd, ".vchat")
		if stat, err := os.Stat(localDir); err == nil && stat.IsDir() {
			return localDir, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vchat"), nil
}

// File returns the full path to the config file.
func File() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads configuration from disk and applies environment overrides.
// A missing file is not an error; defaults are returned.
func Load() (Config, error) {
	cfg := Default()

	path, err := File()
	if err != nil {
		return applyEnv(cfg), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return applyEnv(cfg), nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return applyEnv(cfg), nil
}

// Save writes the configuration to disk, creating the config directory
// if needed.
func Save(cfg Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o644)
}

// applyEnv overlays VCHAT_* environment variables onto cfg.
func applyEnv(cfg Config) Config {
	if v := os.Getenv("VCHAT_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("VCHAT_WS_URL"); v != "" {
		cfg.API.WSURL = v
	}
	if v := os.Getenv("VCHAT_TIMEOUT"); v != "" {
		cfg.API.Timeout = v
	}
	if v := os.Getenv("VCHAT_THEME"); v != "" {
		cfg.UI.Theme = v
	}
	if v := os.Getenv("VCHAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return cfg
}

// HTTPTimeout parses the configured API timeout, falling back to 30s on
// a missing or malformed value.
func (c Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
