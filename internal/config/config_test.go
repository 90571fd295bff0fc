package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:4943/api", cfg.Remote.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, ",", cfg.Market.Delimiter)
	assert.Equal(t, "file::memory:?cache=shared", cfg.Journal.DSN)
	assert.Equal(t, 2*time.Minute, cfg.Auth.LoginTimeout)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
remote:
  base_url: http://bot.local/api
  rate_limit: 3
market:
  delimiter: ";"
logger:
  level: debug
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), content, 0o600))
	t.Setenv("AUTH_TOKEN", "cached-token")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "http://bot.local/api", cfg.Remote.BaseURL)
	assert.Equal(t, 3.0, cfg.Remote.RateLimit)
	assert.Equal(t, ";", cfg.Market.Delimiter)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "cached-token", cfg.Auth.Token)
}
