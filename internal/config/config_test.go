package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, ".env", cfg.EnvFile)
	assert.Equal(t, "OPENAI_API_KEY", cfg.CredentialName)
	assert.Equal(t, "summary.csv", cfg.OutputFile)
	assert.Equal(t, 1, cfg.MaxCredentialResets)
	assert.False(t, cfg.ContinueOnError)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero http timeout", func(c *Config) { c.HTTPTimeout = 0 }},
		{"negative llm timeout", func(c *Config) { c.LLMTimeout = -time.Second }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"base url without host", func(c *Config) { c.BaseURL = "https://" }},
		{"base url with bad scheme", func(c *Config) { c.BaseURL = "ftp://llm.test" }},
		{"empty env file", func(c *Config) { c.EnvFile = "" }},
		{"empty credential name", func(c *Config) { c.CredentialName = "" }},
		{"empty output", func(c *Config) { c.OutputFile = "" }},
		{"negative resets", func(c *Config) { c.MaxCredentialResets = -1 }},
		{"negative cache", func(c *Config) { c.CacheSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		t.Setenv("CRAWL_PILOT_MODEL", "gpt-4o")
		t.Setenv("CRAWL_PILOT_OUTPUT", "out/records.csv")
		t.Setenv("CRAWL_PILOT_TIMEOUT", "5s")
		t.Setenv("CRAWL_PILOT_MAX_CREDENTIAL_RESETS", "2")
		t.Setenv("CRAWL_PILOT_CONTINUE_ON_ERROR", "true")

		cfg := DefaultConfig()
		require.NoError(t, cfg.ApplyEnv())
		assert.Equal(t, "gpt-4o", cfg.Model)
		assert.Equal(t, "out/records.csv", cfg.OutputFile)
		assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
		assert.Equal(t, 2, cfg.MaxCredentialResets)
		assert.True(t, cfg.ContinueOnError)
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("CRAWL_PILOT_TIMEOUT", "soon")
		assert.ErrorContains(t, DefaultConfig().ApplyEnv(), "CRAWL_PILOT_TIMEOUT")
	})
}

func TestLoadSettingsFile(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, LoadSettingsFile(filepath.Join(t.TempDir(), SettingsFile)))
	})

	t.Run("values are loaded without overriding the environment", func(t *testing.T) {
		t.Setenv("CRAWL_PILOT_MODEL", "from-env")
		t.Setenv("CRAWL_PILOT_CACHE_SIZE", "")
		path := filepath.Join(t.TempDir(), SettingsFile)
		require.NoError(t, os.WriteFile(path, []byte("CRAWL_PILOT_MODEL=from-file\nCRAWL_PILOT_CACHE_SIZE=16\n"), 0o600))

		require.NoError(t, LoadSettingsFile(path))
		cfg := DefaultConfig()
		require.NoError(t, cfg.ApplyEnv())
		assert.Equal(t, "from-env", cfg.Model)
	})
}
