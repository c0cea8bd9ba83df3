// Package config loads extractor settings from an optional YAML file and
// the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of one gpmfgps invocation.
type Config struct {
	// GPSTime decodes the GPSU record and attaches UTC time to each point.
	GPSTime bool `yaml:"gps_time"`
	// SampleLog logs every sample of a payload with its unit labels at
	// debug level.
	SampleLog bool `yaml:"sample_log"`
	// Jobs is how many files are processed at once.
	Jobs     int    `yaml:"jobs"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the settings used when no file or environment overrides
// are given.
func Default() Config {
	return Config{Jobs: 1, LogLevel: "info"}
}

// Load reads path as YAML over the defaults. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from GPMF_GPS_TIME, GPMF_SAMPLE_LOG, GPMF_JOBS and
// DEBUG using getenv, normally os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("GPMF_GPS_TIME"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GPMF_GPS_TIME: %w", err)
		}
		c.GPSTime = b
	}
	if v := getenv("GPMF_SAMPLE_LOG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GPMF_SAMPLE_LOG: %w", err)
		}
		c.SampleLog = b
	}
	if v := getenv("GPMF_JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GPMF_JOBS: %w", err)
		}
		c.Jobs = n
	}
	if getenv("DEBUG") != "" {
		c.LogLevel = "debug"
	}
	return c.normalize()
}

// Level returns the slog level named by LogLevel.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
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

func (c *Config) normalize() error {
	if c.Jobs == 0 {
		c.Jobs = 1
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must be > 0")
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "":
		c.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	return nil
}
