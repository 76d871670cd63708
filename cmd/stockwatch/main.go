// Command stockwatch ingests game stock snapshots and notifies subscribers.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bissquit/stockwatch/internal/app"
	"github.com/bissquit/stockwatch/internal/config"
	"github.com/bissquit/stockwatch/internal/version"
)

const shutdownTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", os.Getenv("STOCKWATCH_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to create app", "error", err)
		return 1
	}
	slog.Info("stockwatch starting",
		"version", version.Version,
		"commit", version.GitCommit,
		"storage", cfg.Storage.Driver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		return 1
	}

	if runErr != nil {
		slog.Error("stockwatch stopped with error", "error", runErr)
		return 1
	}
	slog.Info("stockwatch stopped")
	return 0
}
