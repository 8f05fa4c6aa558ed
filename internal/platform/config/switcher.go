package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidBaseURL is returned when an origin base URL is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid origin base URL")
	// ErrPlaylistPathRequired is returned when the playlist path is empty.
	ErrPlaylistPathRequired = errors.New("playlist path is required")
	// ErrIntervalPositive is returned when the check interval is not positive.
	ErrIntervalPositive = errors.New("check interval must be positive")
	// ErrThresholdNegative is returned when a staleness threshold is below zero.
	ErrThresholdNegative = errors.New("segment age threshold must not be negative")
	// ErrWindowsTooSmall is returned when a required window count is below 1.
	ErrWindowsTooSmall = errors.New("required windows must be at least 1")
	// ErrTimeoutPositive is returned when a request timeout is not positive.
	ErrTimeoutPositive = errors.New("timeout must be positive")
)

// Config is the immutable switcher configuration, read once at startup.
type Config struct {
	PrimaryBaseURL string
	BackupBaseURL  string
	PlaylistPath   string

	CheckInterval time.Duration
	Threshold     time.Duration
	Windows       int

	// Fail-back knobs; they mirror Threshold and Windows unless set.
	FailbackThreshold time.Duration
	FailbackWindows   int

	ProbeTimeout time.Duration
	ProxyTimeout time.Duration

	Port      string
	LogLevel  string
	LogFormat string
}

// fileConfig is the YAML shape of CONFIG_FILE. Durations are in seconds.
type fileConfig struct {
	Origins struct {
		Primary string `yaml:"primary"`
		Backup  string `yaml:"backup"`
	} `yaml:"origins"`
	PlaylistPath string `yaml:"playlist_path"`

	Check struct {
		IntervalSeconds  float64 `yaml:"interval_seconds"`
		ThresholdSeconds float64 `yaml:"threshold_seconds"`
		RequiredWindows  int     `yaml:"required_windows"`
	} `yaml:"check"`

	Failback struct {
		ThresholdSeconds *float64 `yaml:"threshold_seconds"`
		RequiredWindows  *int     `yaml:"required_windows"`
	} `yaml:"failback"`

	Timeouts struct {
		ProbeSeconds float64 `yaml:"probe_seconds"`
		ProxySeconds float64 `yaml:"proxy_seconds"`
	} `yaml:"timeouts"`

	Server struct {
		Port      string `yaml:"port"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"server"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		PrimaryBaseURL: "http://origin-primary/hls",
		BackupBaseURL:  "http://origin-backup/hls",
		PlaylistPath:   "index.m3u8",
		CheckInterval:  5 * time.Second,
		Threshold:      20 * time.Second,
		Windows:        3,
		ProbeTimeout:   5 * time.Second,
		ProxyTimeout:   10 * time.Second,
		Port:           "8080",
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// LoadSwitcher builds the switcher Config: defaults, then the YAML file named
// by CONFIG_FILE (if any), then environment variables. The result is validated.
func LoadSwitcher() (Config, error) {
	cfg := Default()
	failbackThresholdSet, failbackWindowsSet := false, false

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fc, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		failbackThresholdSet, failbackWindowsSet, err = cfg.applyFile(fc)
		if err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg.PrimaryBaseURL = GetEnv("PRIMARY_BASE_URL", cfg.PrimaryBaseURL)
	cfg.BackupBaseURL = GetEnv("BACKUP_BASE_URL", cfg.BackupBaseURL)
	cfg.PlaylistPath = GetEnv("PLAYLIST_PATH", cfg.PlaylistPath)
	cfg.CheckInterval = GetEnvSeconds("CHECK_INTERVAL_SECONDS", cfg.CheckInterval)
	cfg.Threshold = GetEnvSeconds("SEGMENT_AGE_THRESHOLD_SECONDS", cfg.Threshold)
	cfg.Windows = GetEnvInt("REQUIRED_WINDOWS", cfg.Windows)
	cfg.ProbeTimeout = GetEnvSeconds("PROBE_TIMEOUT_SECONDS", cfg.ProbeTimeout)
	cfg.ProxyTimeout = GetEnvSeconds("PROXY_TIMEOUT_SECONDS", cfg.ProxyTimeout)
	cfg.Port = GetEnv("PORT", cfg.Port)
	cfg.LogLevel = GetEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = GetEnv("LOG_FORMAT", cfg.LogFormat)

	if os.Getenv("FAILBACK_THRESHOLD_SECONDS") != "" {
		cfg.FailbackThreshold = GetEnvSeconds("FAILBACK_THRESHOLD_SECONDS", cfg.Threshold)
		failbackThresholdSet = true
	}
	if os.Getenv("FAILBACK_REQUIRED_WINDOWS") != "" {
		cfg.FailbackWindows = GetEnvInt("FAILBACK_REQUIRED_WINDOWS", cfg.Windows)
		failbackWindowsSet = true
	}
	if !failbackThresholdSet {
		cfg.FailbackThreshold = cfg.Threshold
	}
	if !failbackWindowsSet {
		cfg.FailbackWindows = cfg.Windows
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

// applyFile overlays non-zero file values and reports which fail-back knobs were set.
func (c *Config) applyFile(fc fileConfig) (thresholdSet, windowsSet bool, err error) {
	setString(&c.PrimaryBaseURL, fc.Origins.Primary)
	setString(&c.BackupBaseURL, fc.Origins.Backup)
	setString(&c.PlaylistPath, fc.PlaylistPath)
	if fc.Check.RequiredWindows != 0 {
		c.Windows = fc.Check.RequiredWindows
	}
	setString(&c.Port, fc.Server.Port)
	setString(&c.LogLevel, fc.Server.LogLevel)
	setString(&c.LogFormat, fc.Server.LogFormat)

	for _, d := range []struct {
		dst *time.Duration
		v   float64
	}{
		{&c.CheckInterval, fc.Check.IntervalSeconds},
		{&c.Threshold, fc.Check.ThresholdSeconds},
		{&c.ProbeTimeout, fc.Timeouts.ProbeSeconds},
		{&c.ProxyTimeout, fc.Timeouts.ProxySeconds},
	} {
		if err := setSeconds(d.dst, d.v); err != nil {
			return false, false, err
		}
	}

	if fc.Failback.ThresholdSeconds != nil {
		d, err := Seconds(*fc.Failback.ThresholdSeconds)
		if err != nil {
			return false, false, err
		}
		c.FailbackThreshold = d
		thresholdSet = true
	}
	if fc.Failback.RequiredWindows != nil {
		c.FailbackWindows = *fc.Failback.RequiredWindows
		windowsSet = true
	}
	return thresholdSet, windowsSet, nil
}

func (c *Config) normalize() {
	c.PrimaryBaseURL = strings.TrimRight(c.PrimaryBaseURL, "/")
	c.BackupBaseURL = strings.TrimRight(c.BackupBaseURL, "/")
	c.PlaylistPath = strings.TrimLeft(c.PlaylistPath, "/")
}

// Validate checks that the configuration can drive the switcher.
func (c Config) Validate() error {
	for _, raw := range []string{c.PrimaryBaseURL, c.BackupBaseURL} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidBaseURL, raw, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s", ErrInvalidBaseURL, raw)
		}
	}
	if c.PlaylistPath == "" {
		return ErrPlaylistPathRequired
	}
	if c.CheckInterval <= 0 {
		return ErrIntervalPositive
	}
	if c.Threshold < 0 || c.FailbackThreshold < 0 {
		return ErrThresholdNegative
	}
	if c.Windows < 1 || c.FailbackWindows < 1 {
		return fmt.Errorf("%w: got %d/%d", ErrWindowsTooSmall, c.Windows, c.FailbackWindows)
	}
	if c.ProbeTimeout <= 0 || c.ProxyTimeout <= 0 {
		return ErrTimeoutPositive
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setSeconds(dst *time.Duration, v float64) error {
	if v == 0 {
		return nil
	}
	d, err := Seconds(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
