package main

import (
	"log/slog"
	"net/http"

	"github.com/angeloszaimis/reservations/internal/circuitbreaker"
	"github.com/angeloszaimis/reservations/internal/handler"
	"github.com/angeloszaimis/reservations/internal/metrics"
)

func setupRouter(gateway *handler.GatewayHandler, metricsCollector *metrics.Collector, breakers *circuitbreaker.Registry, strategy string, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /reservations", gateway.CreateReservation)
	mux.HandleFunc("GET /reservations/names", gateway.ReservationNames)
	mux.HandleFunc("GET /metrics", metricsCollector.Handler(strategy, breakers))
	mux.HandleFunc("POST /breakers/reset", handler.ResetBreakers(breakers, log))
	mux.HandleFunc("GET /health", handler.Health)
	mux.HandleFunc("/{service}/{path...}", gateway.PassThrough)

	return mux
}
