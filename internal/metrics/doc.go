// Package metrics collects routing outcomes for the gateway.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Routed calls per service, split by outcome (success, failure, fallback, unavailable)
//   - Response times with percentile calculations (P50, P95, P99)
//   - Downstream status code distribution
//   - Selections and health per instance
//
// The collector runs in a dedicated goroutine. Emit never blocks the request
// path; events are dropped when the buffer is full.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventRouteSuccess,
//		Service:    "reservation-service",
//		Instance:   "localhost:8000",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	snapshot := collector.Snapshot("round-robin")
//
// Remaining events are drained on shutdown.
package metrics
