package handler

import (
	"log/slog"
	"net/http"
)

// BreakerResetter forgets the state of every circuit breaker.
type BreakerResetter interface {
	Reset()
}

// ResetBreakers closes all circuits by discarding their state. New breakers
// are created on the next call to each service.
func ResetBreakers(breakers BreakerResetter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		breakers.Reset()
		logger.Warn("Circuit breakers reset", slog.String("client_ip", extractClientIP(r)))
		w.WriteHeader(http.StatusNoContent)
	}
}
