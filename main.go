package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"reelsync/backend/internal/app"
	"reelsync/backend/internal/config"
	"reelsync/backend/internal/logger"
)

func main() {
	log := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("application exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	a, err := app.New(cfg, deps.DB, deps, app.Overrides{})
	if err != nil {
		return err
	}

	log.Info("application starting", "executor", cfg.Executor, "workers", cfg.WorkerCount)
	return a.Run(ctx)
}
