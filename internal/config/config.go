// ABOUTME: Configuration management for the feedz CLI.
// ABOUTME: Handles TOML config file loading, saving, and validation.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config describes the persisted feedz settings. Credentials are never stored.
type Config struct {
	Region    string `toml:"region,omitempty"`
	APIURL    string `toml:"api_url,omitempty"`
	FeedURL   string `toml:"feed_url,omitempty"`
	History   bool   `toml:"history"`
	LogLevel  string `toml:"log_level,omitempty"`
	LogFormat string `toml:"log_format,omitempty"`
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Load reads the config from disk. If the file does not exist it returns a default config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the config atomically to disk.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp config file: %w", err)
	}
	tmpName := tmpFile.Name()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp config file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp config file: %w", err)
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("setting config permissions: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing config: %w", err)
	}

	return nil
}

// Validate checks the enumerated settings and endpoint overrides.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	var problems []string
	if c.LogLevel != "" && !slices.Contains(logLevels, c.LogLevel) {
		problems = append(problems, fmt.Sprintf("log_level must be one of %s", strings.Join(logLevels, ", ")))
	}
	if c.LogFormat != "" && !slices.Contains(logFormats, c.LogFormat) {
		problems = append(problems, fmt.Sprintf("log_format must be one of %s", strings.Join(logFormats, ", ")))
	}
	for key, value := range map[string]string{"api_url": c.APIURL, "feed_url": c.FeedURL} {
		if value == "" {
			continue
		}
		if err := checkURL(value); err != nil {
			problems = append(problems, fmt.Sprintf("%s %v", key, err))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Keys lists the settable keys in file order.
func Keys() []string {
	return []string{"region", "api_url", "feed_url", "history", "log_level", "log_format"}
}

// Set updates one key from its string form and validates the result.
func (c *Config) Set(key, value string) error {
	if c == nil {
		return errors.New("config is nil")
	}
	next := *c
	switch strings.ToLower(key) {
	case "region":
		next.Region = value
	case "api_url":
		next.APIURL = value
	case "feed_url":
		next.FeedURL = value
	case "history":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("history must be true or false, got %q", value)
		}
		next.History = enabled
	case "log_level":
		next.LogLevel = strings.ToLower(value)
	case "log_format":
		next.LogFormat = strings.ToLower(value)
	default:
		return fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(Keys(), ", "))
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Clone returns a shallow copy of the config to avoid accidental mutation.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	copied := *c
	return &copied
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http or https URL")
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}
