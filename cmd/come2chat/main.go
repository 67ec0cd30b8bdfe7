package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/AhmedEhabH/Come2Chat/internal/server"
	"github.com/AhmedEhabH/Come2Chat/pkg/config"
	"github.com/AhmedEhabH/Come2Chat/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if level := logging.ParseLevel(cfg.LogLevel); level != logging.LevelInfo {
		logger = logging.New(level)
		slog.SetDefault(logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := server.NewApp(logger, ctx, cfg)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
