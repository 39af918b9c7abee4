package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/video-downloader/internal/app/worker"
	"github.com/magabrotheeeer/video-downloader/internal/config"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	logger := sl.SetupLogger(cfg.Env)

	logger.Info("starting download-worker",
		slog.String("env", cfg.Env),
		slog.Int("concurrency", cfg.Worker.Concurrency),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := worker.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize worker", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("worker stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("download-worker stopped gracefully")
}
