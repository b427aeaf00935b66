package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the YAML file. They mirror the
// variables the browser client was built with.
const (
	EnvAPIPath     = "TIMETABLE_API_PATH"
	EnvListen      = "TIMETABLE_LISTEN"
	EnvLogLevel    = "TIMETABLE_LOG_LEVEL"
	EnvBannerTitle = "TIMETABLE_BANNER_TITLE"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the local API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the local API.
	Listen string `yaml:"listen" json:"listen"`

	// APIPath is the backend base URL. "all", "dev" and "errors" are
	// appended to it, so it should end with a slash.
	APIPath string `yaml:"api_path" json:"api_path"`

	// Timezone is the IANA zone used for display and ICS export.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is the cron schedule for refetching the current week.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ClockInterval controls how often the shared "now" is resampled.
	ClockInterval time.Duration `yaml:"clock_interval" json:"clock_interval"`

	// HTTPTimeout bounds each backend request.
	HTTPTimeout time.Duration `yaml:"http_timeout" json:"http_timeout"`

	// PrefetchWeeks is how many upcoming weeks the refresh job warms.
	PrefetchWeeks int `yaml:"prefetch_weeks" json:"prefetch_weeks"`

	BannerTitle string `yaml:"banner_title" json:"banner_title"`
	LogLevel    string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:8080",
		APIPath:       "http://127.0.0.1:3000/api/",
		Timezone:      "Europe/Ljubljana",
		RefreshCron:   "*/15 * * * *",
		ClockInterval: time.Minute,
		HTTPTimeout:   15 * time.Second,
		PrefetchWeeks: 1,
		BannerTitle:   "Urnik",
		LogLevel:      "info",
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.APIPath == "" {
		c.APIPath = def.APIPath
	}
	if !strings.HasSuffix(c.APIPath, "/") {
		c.APIPath += "/"
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.ClockInterval <= 0 {
		c.ClockInterval = def.ClockInterval
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = def.HTTPTimeout
	}
	if c.PrefetchWeeks < 0 {
		c.PrefetchWeeks = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read and normalized.
//
// In both cases environment overrides (see ApplyEnv) are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller decides whether a read-only location is fatal.
				cfg.ApplyEnv()
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the
// process environment without overriding variables already set. A missing
// file is not an error.
func LoadDotEnv(files ...string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv overrides fields from TIMETABLE_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIPath); v != "" {
		c.APIPath = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvBannerTitle); v != "" {
		c.BannerTitle = v
	}
	c.Normalize()
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms,
// creating the parent directory (0700) if needed.
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

	tmp, err := os.CreateTemp(dir, ".timetable-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
