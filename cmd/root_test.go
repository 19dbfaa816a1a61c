package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoot(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	Flags = AppFlags{}
	root := &cobra.Command{Use: appName}
	addAppPersistentFlags(root)
	require.NoError(t, root.ParseFlags(args))
	return root
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadConfig(newTestRoot(t))
		require.NoError(t, err)
		assert.Equal(t, "summary.csv", cfg.OutputFile)
		assert.Equal(t, ".env", cfg.EnvFile)
		assert.Equal(t, 1, cfg.MaxCredentialResets)
	})

	t.Run("explicit flags win over the environment", func(t *testing.T) {
		t.Setenv("CRAWL_PILOT_MODEL", "from-env")
		t.Setenv("CRAWL_PILOT_OUTPUT", "env.csv")

		cfg, err := loadConfig(newTestRoot(t, "--model", "from-flag", "--timeout", "3s", "--continue-on-error"))
		require.NoError(t, err)
		assert.Equal(t, "from-flag", cfg.Model)
		assert.Equal(t, "env.csv", cfg.OutputFile)
		assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
		assert.True(t, cfg.ContinueOnError)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		_, err := loadConfig(newTestRoot(t, "--max-credential-resets", "-1"))
		assert.ErrorContains(t, err, "設定が不正です")
	})
}

func TestInitAppPreRunE(t *testing.T) {
	dir := t.TempDir()
	root := newTestRoot(t, "--env-file", dir+"/.env", "--output", dir+"/summary.csv", "--continue-on-error")

	require.NoError(t, initAppPreRunE(root, nil))
	a, err := getApp()
	require.NoError(t, err)
	assert.Equal(t, dir+"/.env", a.creds.Path())
	assert.Equal(t, dir+"/summary.csv", a.store.Path())
	assert.Equal(t, 2*a.cfg.HTTPTimeout, a.overallTimeout())

	runner, err := a.newRunner(root)
	require.NoError(t, err)
	assert.NotNil(t, runner)
}
