package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDatabaseURL = "BUDGETWISE_DATABASE_URL"
	EnvListen      = "BUDGETWISE_LISTEN"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen"`

	// DatabaseURL is a lib/pq connection string.
	DatabaseURL string `yaml:"database_url"`

	// Timezone is the IANA zone that decides which calendar day "today" is.
	Timezone string `yaml:"timezone"`

	// SweepSchedule is a five-field cron expression for the recurring sweep.
	SweepSchedule string `yaml:"sweep_schedule"`

	// StartupDelay is how long after start the catch-up sweep runs.
	StartupDelay time.Duration `yaml:"startup_delay"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// EventBuffer sizes the audit event channel.
	EventBuffer int `yaml:"event_buffer"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:        ":5000",
		DatabaseURL:   "host=localhost port=5432 user=postgres password=postgres dbname=budgetwise sslmode=disable",
		Timezone:      "UTC",
		SweepSchedule: "0 1 * * *",
		StartupDelay:  time.Minute,
		LogLevel:      "info",
		LogFormat:     "text",
		EventBuffer:   100,
	}
}

// Normalize fills zero values with defaults so partial files still work.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = def.DatabaseURL
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.SweepSchedule == "" {
		c.SweepSchedule = def.SweepSchedule
	}
	if c.StartupDelay <= 0 {
		c.StartupDelay = def.StartupDelay
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = def.LogLevel
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		c.LogFormat = def.LogFormat
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
}

// Location resolves Timezone, falling back to UTC for unknown names.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads the YAML file at path. A missing file is created with the
// defaults (0600). Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		cfg.Normalize()
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
}

// Save writes cfg to path atomically via a temp file + rename.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".budgetwise-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
