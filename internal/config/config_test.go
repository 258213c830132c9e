package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresBackendURL(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("DEMO_MODE", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKEND_URL")
}

func TestDemoModeNeedsNoBackend(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("DEMO_MODE", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.DemoMode)
}

func TestDefaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://backend:8000")
	t.Setenv("DEMO_MODE", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.WebPort)
	assert.Equal(t, 5, cfg.SocketRetryMax)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "ws://backend:8000/ws", cfg.BackendWSURL)
}

func TestWSURLDerivation(t *testing.T) {
	assert.Equal(t, "wss://api.example.com/ws", deriveWSURL("https://api.example.com/"))
	assert.Equal(t, "ws://10.0.0.5:8000/ws", deriveWSURL("http://10.0.0.5:8000"))
	assert.Equal(t, "", deriveWSURL(""))
}

func TestExplicitWSURLWins(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://backend:8000")
	t.Setenv("BACKEND_WS_URL", "ws://stream:9001/live")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ws://stream:9001/live", cfg.BackendWSURL)
}
