package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for vitalvest.
type Config struct {
	// Backend connection settings
	BackendURL   string
	BackendWSURL string

	// Polling and reconnect behaviour
	PollInterval      time.Duration // REST poll cadence once polling is started
	SocketRetryMax    int           // reconnect attempts before giving up
	SocketRetryDelay  time.Duration // fixed delay between reconnect attempts
	DemoMode          bool          // synthesise readings instead of dialing the backend
	DemoFrameInterval time.Duration

	// Local admin login (fallback when the backend is unreachable)
	AdminUsername string
	AdminPassword string

	// Storage paths
	DBPath    string
	StateFile string

	// Web UI
	WebPort string

	// Logging
	LogLevel string // DEBUG, INFO, WARN, ERROR
}

// Load reads configuration from environment variables and validates
// that all required values are present.
func Load() (*Config, error) {
	backendURL := os.Getenv("BACKEND_URL")
	demoMode, _ := strconv.ParseBool(getEnv("DEMO_MODE", "false"))
	if backendURL == "" && !demoMode {
		return nil, fmt.Errorf("BACKEND_URL is required (or set DEMO_MODE=true)")
	}

	pollMs, _ := strconv.Atoi(getEnv("POLL_INTERVAL", "5000"))
	retryMax, _ := strconv.Atoi(getEnv("SOCKET_RETRY_ATTEMPTS", "5"))
	retrySec, _ := strconv.Atoi(getEnv("SOCKET_RETRY_DELAY", "3"))
	demoMs, _ := strconv.Atoi(getEnv("DEMO_FRAME_INTERVAL", "1000"))

	return &Config{
		BackendURL:        backendURL,
		BackendWSURL:      getEnv("BACKEND_WS_URL", deriveWSURL(backendURL)),
		PollInterval:      time.Duration(pollMs) * time.Millisecond,
		SocketRetryMax:    retryMax,
		SocketRetryDelay:  time.Duration(retrySec) * time.Second,
		DemoMode:          demoMode,
		DemoFrameInterval: time.Duration(demoMs) * time.Millisecond,
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		DBPath:            getEnv("DB_PATH", "vitalvest.db"),
		StateFile:         getEnv("STATE_FILE", "vitalvest-state.json"),
		WebPort:           getEnv("WEB_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
	}, nil
}

// deriveWSURL turns the REST base URL into the matching WebSocket URL. The
// backend serves its stream on /ws next to the REST routes.
func deriveWSURL(backendURL string) string {
	if backendURL == "" {
		return ""
	}
	ws := backendURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return strings.TrimRight(ws, "/") + "/ws"
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
