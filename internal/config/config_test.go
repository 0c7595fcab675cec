package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRACKER_DATABASE__URL", "postgres://localhost:5432/tracker")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, 20*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 4, cfg.Sweep.TitleConcurrency)
	assert.Equal(t, 15*time.Second, cfg.Sweep.AdapterTimeout)
	assert.Equal(t, []string{"mangadex", "comick", "mangapill"}, cfg.Reconcile.Priority)
	assert.Equal(t, "1", cfg.Reconcile.DefaultChapter)
	assert.True(t, cfg.Sources.Mangadex.Enabled)
	assert.False(t, cfg.Sources.Mangapill.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Notifications.LinkTokenTTL)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("TRACKER_DATABASE__URL", "postgres://localhost:5432/tracker")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
sweep:
  interval: 5m
  title_concurrency: 8
reconcile:
  priority: ["comick", "mangadex"]
  default_chapter: "0.5"
sources:
  mangapill:
    enabled: true
    base_url: https://mirror.example.com
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 8, cfg.Sweep.TitleConcurrency)
	assert.Equal(t, []string{"comick", "mangadex"}, cfg.Reconcile.Priority)
	assert.Equal(t, "0.5", cfg.Reconcile.DefaultChapter)
	assert.True(t, cfg.Sources.Mangapill.Enabled)
	assert.Equal(t, "https://mirror.example.com", cfg.Sources.Mangapill.BaseURL)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TRACKER_DATABASE__URL", "postgres://localhost:5432/tracker")
	t.Setenv("TRACKER_LOG__LEVEL", "debug")
	t.Setenv("TRACKER_SWEEP__INTERVAL", "30m")
	t.Setenv("TRACKER_NOTIFICATIONS__TELEGRAM__BOT_TOKEN", "123:abc")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 30*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, "123:abc", cfg.Notifications.Telegram.BotToken)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing database url",
			env:  map[string]string{},
		},
		{
			name: "bad log level",
			env: map[string]string{
				"TRACKER_DATABASE__URL": "postgres://localhost/t",
				"TRACKER_LOG__LEVEL":    "verbose",
			},
		},
		{
			name: "interval too short",
			env: map[string]string{
				"TRACKER_DATABASE__URL":   "postgres://localhost/t",
				"TRACKER_SWEEP__INTERVAL": "10s",
			},
		},
		{
			name: "metrics port clashes with server port",
			env: map[string]string{
				"TRACKER_DATABASE__URL":        "postgres://localhost/t",
				"TRACKER_SERVER__METRICS_PORT": "8080",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
