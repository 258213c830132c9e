package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"vitalvest/internal/backend"
	"vitalvest/internal/config"
	"vitalvest/internal/coordinator"
	"vitalvest/internal/demo"
	"vitalvest/internal/history"
	"vitalvest/internal/metrics"
	"vitalvest/internal/retry"
	"vitalvest/internal/state"
	"vitalvest/internal/web"
)

// version is set at build time via -ldflags "-X main.version=v1.0.0"
var version = "dev"

func main() {
	// Load config first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Can't use slog yet as it isn't configured
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Configure slog with JSON handler and configured log level
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("Starting VitalVest", "component", "Main", "version", version)
	slog.Info("Backend configuration", "component", "Main", "url", cfg.BackendURL, "wsUrl", cfg.BackendWSURL, "demo", cfg.DemoMode)
	slog.Info("Poll configuration", "component", "Main", "interval", cfg.PollInterval, "retryAttempts", cfg.SocketRetryMax, "retryDelay", cfg.SocketRetryDelay)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shared state for the web UI, reloading any persisted login
	dash := state.New(500, cfg.BackendURL, cfg.StateFile, cfg.DemoMode)
	slog.Debug("State file configured", "component", "Main", "path", cfg.StateFile)

	met := metrics.New()

	// Reading history in SQLite. The dashboard survives without it.
	var store *history.Store
	if cfg.DBPath != "" {
		store, err = history.Open(ctx, cfg.DBPath)
		if err != nil {
			slog.Error("History storage unavailable, continuing without", "component", "Main", "error", err)
			store = nil
		} else {
			defer store.Close()
			if n, err := store.Count(ctx); err == nil {
				slog.Info("History storage ready", "component", "Main", "path", cfg.DBPath, "readings", n)
			}
		}
	}

	bc := backend.NewClient(cfg.BackendURL)

	// Frame source: real backend stream, or the synthesiser in demo mode.
	var source coordinator.FrameSource
	if cfg.DemoMode {
		slog.Info("Demo mode active, synthesising sensor frames", "component", "Main")
		demoSrc := demo.NewSource(cfg.DemoFrameInterval)
		source = coordinator.SourceFunc(func(ctx context.Context) (coordinator.FrameConn, error) {
			return demoSrc.Connect(ctx)
		})
	} else {
		stream := backend.NewStream(cfg.BackendWSURL)
		source = coordinator.SourceFunc(func(ctx context.Context) (coordinator.FrameConn, error) {
			return stream.Connect(ctx)
		})
	}

	policy := retry.Policy{MaxAttempts: cfg.SocketRetryMax, Delay: cfg.SocketRetryDelay}
	var recorder coordinator.Recorder
	if store != nil {
		recorder = store
	}
	coord := coordinator.New(bc, source, policy, dash, recorder, met, cfg.DemoMode)
	go coord.Run(ctx)

	// Hand a persisted login back to the coordinator so polling works
	// right away after a restart.
	if token := dash.AuthToken(); token != "" {
		coord.Send(nil, coordinator.Command{Type: coordinator.CmdSetAuthToken, Token: token})
	}

	webServer := web.New(coord, dash, bc, store, met, cfg.WebPort, version, cfg.DemoMode, cfg.AdminUsername, cfg.AdminPassword)
	webServer.Start()

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	slog.Info("Shutting down gracefully", "component", "Main")
	cancel()
}

// parseLogLevel converts a string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
