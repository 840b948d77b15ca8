// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/anything-but-metric/internal/secrets"
	"github.com/pdiddy/anything-but-metric/pkg/types"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ABM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv(secrets.GroqKeyEnv, "")
	t.Setenv(secrets.GoogleKeyEnv, "")
}

func TestLoadConfigDefaults(t *testing.T) {
	clearKeyEnv(t)
	cfg, err := loadConfig(newTestViper(), nil)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultScraperConfig(), cfg)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("ABM_MAX_AGE", "2h")
	t.Setenv("ABM_EXTRACTION_PRIMARY_MODEL", "llama-from-env")

	v := newTestViper()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
data_dir: /srv/abm
max_entries: 5
filter_both_new: true
fetch:
  timeout: 5s
  user_agent: test-agent
extraction:
  primary:
    model: llama-from-file
    rpm: 10
  secondary:
    retry_after: 90s
`)))

	cfg, err := loadConfig(v, nil)
	require.NoError(t, err)

	assert.Equal(t, "/srv/abm", cfg.DataDir)
	assert.Equal(t, 5, cfg.MaxEntries)
	assert.True(t, cfg.FilterBothNew)
	assert.Equal(t, 2*time.Hour, cfg.MaxAge)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "test-agent", cfg.Fetch.UserAgent)
	assert.Equal(t, types.DefaultMinChars, cfg.Fetch.MinChars)
	assert.Equal(t, "llama-from-env", cfg.Extraction.Primary.Model)
	assert.Equal(t, 10, cfg.Extraction.Primary.RPM)
	assert.Equal(t, "groq", cfg.Extraction.Primary.Name)
	assert.Equal(t, 90*time.Second, cfg.Extraction.Secondary.RetryAfter)
	assert.Equal(t, types.DefaultSecondaryModel, cfg.Extraction.Secondary.Model)
}

func TestLoadConfigResolvesKeys(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv(secrets.GoogleKeyEnv, "google-from-env")

	loaded := map[string]string{
		secrets.GroqKeyFile:   "groq-from-file",
		secrets.GoogleKeyFile: "google-from-file",
	}
	cfg, err := loadConfig(newTestViper(), loaded)
	require.NoError(t, err)

	assert.Equal(t, "groq-from-file", cfg.Extraction.Primary.APIKey)
	assert.Equal(t, "google-from-env", cfg.Extraction.Secondary.APIKey)
}

func TestLoadConfigExplicitKeyWins(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv(secrets.GroqKeyEnv, "groq-from-env")
	t.Setenv("ABM_EXTRACTION_PRIMARY_API_KEY", "groq-explicit")

	cfg, err := loadConfig(newTestViper(), nil)
	require.NoError(t, err)
	assert.Equal(t, "groq-explicit", cfg.Extraction.Primary.APIKey)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "a long ...", clip("a long sentence", 10))
	assert.Equal(t, "ééé...", clip("éééééééé", 6))
}
