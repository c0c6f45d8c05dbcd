package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasky/internal/config"
)

func TestNew_DefaultsWithoutSettingsFile(t *testing.T) {
	t.Setenv(config.BaseURLEnv, "")
	dir := t.TempDir()

	cfg, err := config.New(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, config.DefaultSettings(), cfg.Settings)
	assert.Equal(t, filepath.Join(dir, "session.json"), cfg.SessionPath())
	assert.Equal(t, filepath.Join(dir, "cache.db"), cfg.CachePath())
}

func TestNew_SettingsFileOverridesDefaults(t *testing.T) {
	t.Setenv(config.BaseURLEnv, "")
	dir := t.TempDir()
	yamlData := "base_url: http://localhost:9999\ntimeout: 2s\npage_limit: 25\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlData), 0600))

	cfg, err := config.New(dir)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.Settings.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Settings.Timeout)
	assert.Equal(t, 25, cfg.Settings.PageLimit)
	// Omitted keys keep defaults.
	assert.Equal(t, "AccessToken", cfg.Settings.AccessTokenHeader)
	assert.Equal(t, config.DefaultSettings().RefreshTimeout, cfg.Settings.RefreshTimeout)
}

func TestNew_EnvOverridesBaseURL(t *testing.T) {
	t.Setenv(config.BaseURLEnv, "http://env.example")

	cfg, err := config.New(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://env.example", cfg.Settings.BaseURL)
}

func TestNew_MalformedSettings(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("base_url: [unclosed"), 0600))

	_, err := config.New(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing settings")
}
