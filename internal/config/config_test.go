package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "/v1", cfg.Server.BasePath)
	require.Equal(t, "none", cfg.Generator.Provider)
	require.Equal(t, 90*time.Second, cfg.Generator.TimeoutDuration())
	require.True(t, cfg.Notifications.Log)
	require.False(t, cfg.Auth.DevLogin)
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
generator:
  provider: anthropic
  timeout: 15s
logging:
  format: json
`))
	require.NoError(t, err)
	require.Equal(t, "anthropic", cfg.Generator.Provider)
	require.Equal(t, 15*time.Second, cfg.Generator.TimeoutDuration())
	require.Equal(t, "json", cfg.Logging.Format)
	require.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
}

func TestFromYAMLRejectsUnknownProvider(t *testing.T) {
	_, err := FromYAML([]byte("generator:\n  provider: oracle\n"))
	require.Error(t, err)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crewline.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = "0.0.0.0:9000"

[[notifications.webhooks]]
url = "http://example.invalid/hook"
events = ["task.completed"]
`), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	require.Len(t, cfg.Notifications.Webhooks, 1)
	require.Equal(t, []string{"task.completed"}, cfg.Notifications.Webhooks[0].Events)
}

func TestWebhookRequiresURL(t *testing.T) {
	_, err := FromYAML([]byte("notifications:\n  webhooks:\n    - secret: s\n"))
	require.Error(t, err)
}

func TestLoadOptionalMissingFile(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}
