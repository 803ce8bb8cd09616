package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/angeloszaimis/reservations/internal/circuitbreaker"
)

// BreakerStats reports the state of every known circuit breaker.
type BreakerStats interface {
	Stats() map[string]circuitbreaker.State
}

func (c *Collector) Handler(strategy string, breakers BreakerStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := c.metrics.Snapshot(strategy)
		if breakers != nil {
			snap.Breakers = breakers.Stats()
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
