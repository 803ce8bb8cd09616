package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/angeloszaimis/reservations/config"
	"github.com/angeloszaimis/reservations/internal/configserver"
	"github.com/angeloszaimis/reservations/internal/handler"
	"github.com/angeloszaimis/reservations/internal/httpserver"
	"github.com/angeloszaimis/reservations/pkg/logger"
)

func main() {
	cfg, err := config.Load("config-server")
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment, cfg.Server.Name)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := httpserver.New(cfg.Server.Address, newHandler(cfg, log), log)
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Serving configuration", slog.String("directory", cfg.ConfigServer.Directory))
	if err := srv.Run(ctx); err != nil {
		log.Error("Config server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func newHandler(cfg *config.Config, log *slog.Logger) http.Handler {
	repo := configserver.NewRepository(cfg.ConfigServer.Directory)
	return handler.Logging(log, configserver.NewHandler(repo, log).Routes())
}
