// Package main implements the entry point for the scry-studio server, which
// turns project documents into mind maps, summaries and flashcards using a
// streaming language model.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/scry-studio/internal/config"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// run loads configuration, builds the application and serves until ctx is
// cancelled.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"llm_provider", cfg.LLM.Provider,
		"max_concurrent_per_project", cfg.Generation.MaxConcurrentPerProject,
		"redis_enabled", cfg.Redis.Enabled,
		"telemetry_enabled", cfg.Telemetry.Enabled)

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
