// Package config handles the XDG configuration directory, file paths and settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// AppName is the application directory name.
	AppName = "tasky"

	// SessionFile is the persisted session filename.
	SessionFile = "session.json"

	// CacheFile is the local task cache database filename.
	CacheFile = "cache.db"

	// SettingsFile is the optional settings filename.
	SettingsFile = "config.yaml"

	// BaseURLEnv overrides Settings.BaseURL when set.
	BaseURLEnv = "TASKY_BASE_URL"
)

// Settings are the user-editable options read from config.yaml.
type Settings struct {
	// BaseURL is the task API root.
	BaseURL string `yaml:"base_url"`

	// AccessTokenHeader is the request header carrying the access token.
	// The API does not use the Authorization header.
	AccessTokenHeader string `yaml:"access_token_header"`

	// Timeout bounds every API call.
	Timeout time.Duration `yaml:"timeout"`

	// RefreshTimeout bounds the token refresh call.
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`

	// ProbeInterval is how often watch checks connectivity.
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// PageLimit is the default page size for list.
	PageLimit int `yaml:"page_limit"`
}

// DefaultSettings returns the settings used when config.yaml is absent.
func DefaultSettings() Settings {
	return Settings{
		BaseURL:           "https://api.oluwasetemi.dev",
		AccessTokenHeader: "AccessToken",
		Timeout:           10 * time.Second,
		RefreshTimeout:    15 * time.Second,
		ProbeInterval:     5 * time.Second,
		PageLimit:         10,
	}
}

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Settings are loaded from config.yaml on top of the defaults.
	Settings Settings
}

// New creates a new Config with the default or specified config directory
// and loads config.yaml from it.
// If configDir is empty, uses XDG_CONFIG_HOME/tasky or $HOME/.config/tasky.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := &Config{Dir: dir, Settings: DefaultSettings()}
	if err := cfg.loadSettings(); err != nil {
		return nil, err
	}
	if v := os.Getenv(BaseURLEnv); v != "" {
		cfg.Settings.BaseURL = v
	}
	return cfg, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

func (c *Config) loadSettings() error {
	data, err := os.ReadFile(c.SettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading settings: %w", err)
	}

	// Unmarshal over the defaults so omitted keys keep their values.
	if err := yaml.Unmarshal(data, &c.Settings); err != nil {
		return fmt.Errorf("parsing settings: %w", err)
	}

	def := DefaultSettings()
	if c.Settings.AccessTokenHeader == "" {
		c.Settings.AccessTokenHeader = def.AccessTokenHeader
	}
	if c.Settings.Timeout <= 0 {
		c.Settings.Timeout = def.Timeout
	}
	if c.Settings.RefreshTimeout <= 0 {
		c.Settings.RefreshTimeout = def.RefreshTimeout
	}
	if c.Settings.ProbeInterval <= 0 {
		c.Settings.ProbeInterval = def.ProbeInterval
	}
	if c.Settings.PageLimit <= 0 {
		c.Settings.PageLimit = def.PageLimit
	}
	return nil
}

// SessionPath returns the path to the persisted session file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, SessionFile)
}

// CachePath returns the path to the local task cache database.
func (c *Config) CachePath() string {
	return filepath.Join(c.Dir, CacheFile)
}

// SettingsPath returns the path to config.yaml.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Dir, SettingsFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}
