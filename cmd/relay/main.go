package main

import (
	"chat-relay/contract"
	"chat-relay/infrastructure/websocket"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a fatal server error.
// Keeping os.Exit in main lets every defer here run first.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Optional moderation
	censor, err := buildCensor(config, logger)
	if err != nil {
		return exitConfig, err
	}

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Bus, monitoring and supervised background workers
	bus := runtime.NewBus(config.BusCapacity)
	monitoring := observability.NewMonitoringManager()
	logger.Info("Fan-out bus ready", "capacity", bus.Capacity())

	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(workers.NewHealthMonitoringWorker(logger, monitoring, bus, config.MetricInterval))
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 5. WebSocket server
	acceptor := websocket.NewAcceptor(logger, bus, monitoring, censor,
		int64(config.MaxMessageSize), config.WriteTimeout)
	server := websocket.NewServer(logger, config.Address(), acceptor, config.ShutdownTimeout)

	errChan := make(chan error, 1)
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		// Run returns nil only once ctx is done
		if err := server.Run(ctx); err != nil {
			errChan <- err
		}
	}()

	// 6. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		code, runErr = exitRuntime, err
		stop()
	}

	// 7. Final Cleanup
	logger.Info("Shutting down gracefully...")
	<-serverDone
	bus.Close()
	sup.Stop()
	<-supDone
	logger.Info("Relay stopped", monitoring.Snapshot().LogAttrs()...)

	return code, runErr
}

// buildCensor returns nil when moderation is disabled.
func buildCensor(config internal.Config, logger *slog.Logger) (contract.Censor, error) {
	if !config.ModerationEnabled() {
		return nil, nil
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}

	dir := filepath.Clean(config.CensoredWordsDir)
	data, err := runtime.NewCensoredLoader(os.DirFS(dir)).LoadAll(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load censored words from %s: %w", dir, err)
	}

	moderator, err := moderation.NewModerator(data.Words, charReplacement, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build moderator: %w", err)
	}
	logger.Info("Moderation enabled",
		"words", len(data.Words), "languages", strings.Join(data.Languages, ","))
	return moderator, nil
}
