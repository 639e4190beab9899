package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/fieldfill/internal/log"
	"github.com/tombee/fieldfill/pkg/errors"
)

// isolate points XDG paths at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, k := range []string{
		"FIELDFILL_PROVIDER", "FIELDFILL_STORE", "FIELDFILL_PROMPTS_DIR", "FIELDFILL_EMULATE",
		"FIELDFILL_METRICS_ADDR", "FIELDFILL_DEBUG", "FIELDFILL_LOG_LEVEL", "LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Provider.Name)
	assert.Equal(t, "openai", cfg.ActiveProvider())
	assert.True(t, cfg.Run.BatchingEnabled)
	assert.Equal(t, 20, cfg.Run.BatchSize)
	assert.Equal(t, 8, cfg.Run.BatchDelaySeconds)
	assert.Equal(t, 5, cfg.Run.RandomDelayMaxSeconds)
	assert.False(t, cfg.Overwrite)
	assert.Equal(t, filepath.Join(dir, "data", "fieldfill", "fieldfill.db"), cfg.Store.Path)
	assert.Equal(t, filepath.Join(dir, "config", "fieldfill", "prompts"), cfg.Library.Dir)
	assert.Empty(t, cfg.Metrics.Addr)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestLoad_DefaultFileIsRead(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config", "fieldfill", "config.yaml")
	require.NoError(t, EnsureDir(path))
	require.NoError(t, os.WriteFile(path, []byte("provider:\n  name: gemini\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Provider.Name)
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
provider:
  name: custom
  max_tokens: 512
  settings:
    custom:
      base_url: http://localhost:8080/v1
      model: llama3
run:
  batching_enabled: false
  batch_delay_seconds: 2
  random_delay_enabled: true
  random_delay_min_seconds: 1
  random_delay_max_seconds: 3
overwrite: true
log:
  level: debug
  format: json
store:
  path: /tmp/ff.db
metrics:
  addr: 127.0.0.1:9464
tracing:
  enabled: true
  sample_rate: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "custom", cfg.ActiveProvider())
	assert.Equal(t, 512, cfg.Provider.MaxTokens)
	assert.False(t, cfg.Run.BatchingEnabled)
	assert.Equal(t, 20, cfg.Run.BatchSize, "zero batch size takes the default")
	assert.Equal(t, 2, cfg.Run.BatchDelaySeconds)
	assert.True(t, cfg.Run.RandomDelayEnabled)
	assert.True(t, cfg.Overwrite)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, log.FormatJSON, cfg.Log.Format)
	assert.Equal(t, "/tmp/ff.db", cfg.Store.Path)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, 0.5, cfg.Tracing.SampleRate)
	assert.Equal(t, "fieldfill", cfg.Tracing.ServiceName)

	creds := cfg.Credentials("custom", "secret")
	assert.Equal(t, "secret", creds.APIKey)
	assert.Equal(t, "http://localhost:8080/v1", creds.BaseURL)
	assert.Equal(t, "llama3", creds.Model)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "provider:\n  name: openai\n")
	t.Setenv("FIELDFILL_PROVIDER", "Anthropic")
	t.Setenv("FIELDFILL_STORE", "/tmp/env.db")
	t.Setenv("FIELDFILL_PROMPTS_DIR", "/tmp/prompts")
	t.Setenv("FIELDFILL_METRICS_ADDR", ":9000")
	t.Setenv("FIELDFILL_EMULATE", "true")
	t.Setenv("FIELDFILL_LOG_LEVEL", "info")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Provider.Name)
	assert.Equal(t, "emulate", cfg.ActiveProvider())
	assert.Equal(t, "/tmp/env.db", cfg.Store.Path)
	assert.Equal(t, "/tmp/prompts", cfg.Library.Dir)
	assert.Equal(t, ":9000", cfg.Metrics.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		env     map[string]string
		wantKey string
	}{
		{name: "unknown provider", body: "provider:\n  name: bard\n", wantKey: "provider.name"},
		{name: "custom without base url", body: "provider:\n  name: custom\n", wantKey: "provider.settings.custom.base_url"},
		{name: "unknown settings key", body: "provider:\n  settings:\n    bard: {model: x}\n", wantKey: "provider.settings.bard"},
		{name: "negative max tokens", body: "provider:\n  max_tokens: -1\n", wantKey: "provider.max_tokens"},
		{name: "bad jitter bounds", body: "run:\n  random_delay_min_seconds: 9\n  random_delay_max_seconds: 1\n", wantKey: "run"},
		{name: "bad log level", body: "log:\n  level: loud\n", wantKey: "log.level"},
		{name: "bad log format", body: "log:\n  format: xml\n", wantKey: "log.format"},
		{name: "bad sample rate", body: "tracing:\n  sample_rate: 3\n", wantKey: "tracing"},
		{name: "malformed yaml", body: "provider: [", wantKey: "config_file"},
		{name: "bad emulate env", env: map[string]string{"FIELDFILL_EMULATE": "sometimes"}, wantKey: "FIELDFILL_EMULATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))

			var cfgErr *errors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantKey, cfgErr.Key)
		})
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	var cfgErr *errors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandHome("~/x/y.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x", "y.db"), got)

	got, err = expandHome("/abs")
	require.NoError(t, err)
	assert.Equal(t, "/abs", got)
}
