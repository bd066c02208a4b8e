package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/entrelaunch.sqlite", cfg.Database.Path)
	require.Equal(t, "memory", cfg.Cache.Backend)
	require.Equal(t, "entrelaunch", cfg.Auth.JWT.Issuer)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 720*time.Hour, cfg.Auth.Session.RefreshTTL)
	require.Equal(t, 720*time.Hour, cfg.Retention.TombstoneTTL)
	require.Equal(t, "GLOBAL", cfg.PayTabs.Region)
	require.Equal(t, "USD", cfg.PayTabs.Currency)
	require.False(t, cfg.Dify.Enabled)
	require.False(t, cfg.SMS.Enabled)
	require.False(t, cfg.Proxy.Enabled)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`
server:
  port: 9090
  log_level: debug
database:
  driver: postgres
  dsn: "host=localhost user=app dbname=app"
tasks:
  enabled:
    token_cleanup: false
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "host=localhost user=app dbname=app", cfg.Database.DSN)
	require.False(t, cfg.Tasks.IsEnabled("token_cleanup"))
	require.True(t, cfg.Tasks.IsEnabled("tombstone_sweep"))
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("ENTRELAUNCH_SERVER_PORT", "7070")
	t.Setenv("ENTRELAUNCH_AUTH_JWT_SECRET", "env-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
}

func TestTasksConfigIsEnabled(t *testing.T) {
	var unset TasksConfig
	require.True(t, unset.IsEnabled("token_cleanup"))

	cfg := TasksConfig{Enabled: map[string]bool{
		"token_cleanup": false,
		"log_prune":     true,
	}}
	require.False(t, cfg.IsEnabled("token_cleanup"))
	require.True(t, cfg.IsEnabled("log_prune"))
	require.True(t, cfg.IsEnabled("tombstone_sweep"))
}
