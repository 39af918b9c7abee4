// Package main Video Downloader API
//
// @title           Video Downloader API
// @version         1.0
// @description     API загрузки видео с дневными квотами и premium-подпиской

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/magabrotheeeer/video-downloader/docs"
	"github.com/magabrotheeeer/video-downloader/internal/app/videodownloader"
	"github.com/magabrotheeeer/video-downloader/internal/config"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
)

func main() {
	// .env необязателен, переменные окружения могут быть заданы снаружи
	_ = godotenv.Load()

	cfg := config.MustLoad()
	logger := sl.SetupLogger(cfg.Env)

	logger.Info("starting video-downloader", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := videodownloader.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("video-downloader stopped gracefully")
}
