package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 4, cfg.Scanner.Concurrency)
	require.Equal(t, 5, cfg.RateLimit.MaxScans)
	require.Equal(t, 60, cfg.RateLimit.WindowMinutes)
	require.Equal(t, 60*time.Minute, cfg.RateLimitWindow())
	require.Equal(t, 10*time.Second, cfg.FetchTimeout())
	require.Equal(t, "memory", cfg.DB.Provider)
	require.True(t, cfg.Report.Enabled)
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("server:\n  port: 9090\nratelimit:\n  max_scans: 3\n  window_minutes: 30\n")
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 3, cfg.RateLimit.MaxScans)
	require.Equal(t, 30*time.Minute, cfg.RateLimitWindow())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.RateLimit.MaxScans = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Auth.Enabled = true
	require.Error(t, bad.Validate())

	bad = cfg
	bad.DB.Provider = "postgres"
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Storage.Provider = "gcs"
	require.Error(t, bad.Validate())
}
