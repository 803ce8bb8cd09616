package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/reservations/config"
	"github.com/angeloszaimis/reservations/internal/handler"
)

// fetchRemoteConfig layers the config server's properties over cfg. The
// service keeps running on its local configuration when the server cannot
// be reached.
func fetchRemoteConfig(ctx context.Context, loader *config.Loader, client *http.Client, cfg *config.Config, log *slog.Logger) *config.Config {
	if cfg.ConfigServer.URL == "" {
		return cfg
	}

	remote, err := loader.Fetch(ctx, client, cfg.ConfigServer.URL, cfg.ConfigServer.Profile)
	if err != nil {
		log.Warn("Config server unavailable, using local configuration",
			slog.String("url", cfg.ConfigServer.URL),
			slog.Any("err", err))
		return cfg
	}
	return remote
}

// refreshHandler re-fetches the remote configuration and applies the values
// that can change at runtime.
func refreshHandler(loader *config.Loader, client *http.Client, server config.ConfigServerConfig,
	reservations *handler.ReservationHandler, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := loader.Fetch(r.Context(), client, server.URL, server.Profile)
		if err != nil {
			log.Error("Config refresh failed", slog.Any("err", err))
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		reservations.SetMessage(cfg.Message)
		log.Info("Config refreshed", slog.String("message", cfg.Message))
		w.WriteHeader(http.StatusNoContent)
	}
}
