package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-ai/parley/internal/event"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultMaxRequests, cfg.RateLimit.MaxRequests)
	assert.Equal(t, int64(DefaultWindowMs), cfg.RateLimit.WindowMs)
	assert.Equal(t, DefaultMaxStreams, cfg.RateLimit.MaxStreams)
}

func TestLoad_JSONCWithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.jsonc")
	writeFile(t, path, `{
		// default model
		"model": "anthropic/claude-sonnet-4-20250514",
		"server": {
			"port": 9000, // custom port
		},
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-sonnet-4-20250514", cfg.Model)
	assert.Equal(t, 9000, cfg.Server.Port)
	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultMaxRequests, cfg.RateLimit.MaxRequests)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parley.yaml")
	writeFile(t, path, `
model: openai/gpt-4o
logLevel: DEBUG
rateLimit:
  maxRequests: 5
  windowMs: 2000
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", cfg.Model)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 5, cfg.RateLimit.MaxRequests)
	assert.Equal(t, int64(2000), cfg.RateLimit.WindowMs)
}

func TestLoad_EnvInterpolation(t *testing.T) {
	t.Setenv("TEST_PARLEY_KEY", "sk-secret")

	path := filepath.Join(t.TempDir(), "parley.json")
	writeFile(t, path, `{"provider": {"anthropic": {"apiKey": "{env:TEST_PARLEY_KEY}"}}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", cfg.Provider["anthropic"].APIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("PARLEY_MODEL", "openai/gpt-4o-mini")
	t.Setenv("PARLEY_LOG_LEVEL", "WARN")
	t.Setenv("PARLEY_PORT", "7777")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", cfg.Provider["openai"].APIKey)
	assert.Equal(t, "openai/gpt-4o-mini", cfg.Model)
	assert.Equal(t, "WARN", cfg.LogLevel)
	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestLoad_FileKeyBeatsEnvFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")

	path := filepath.Join(t.TempDir(), "parley.json")
	writeFile(t, path, `{"provider": {"anthropic": {"apiKey": "sk-file"}}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.Provider["anthropic"].APIKey)
}

func TestWatcher_PublishesConfigEvents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "parley.json")
	writeFile(t, path, `{"model": "anthropic/claude-sonnet-4-20250514"}`)

	bus := event.NewBus()
	defer bus.Close()

	updated := make(chan event.Event, 4)
	modelUpdated := make(chan event.Event, 4)
	defer bus.Subscribe(event.ConfigUpdated, func(ev event.Event) { updated <- ev })()
	defer bus.Subscribe(event.ConfigModelUpdated, func(ev event.Event) { modelUpdated <- ev })()

	w, err := NewWatcher(path, bus)
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, path, `{"model": "openai/gpt-4o"}`)

	select {
	case <-updated:
	case <-time.After(3 * time.Second):
		t.Fatal("no config.updated event after file change")
	}

	select {
	case ev := <-modelUpdated:
		data := ev.Data.(event.ConfigModelUpdatedData)
		assert.Equal(t, "openai/gpt-4o", data.Model)
	case <-time.After(3 * time.Second):
		t.Fatal("no config.model.updated event after model change")
	}
}
