// Package circuitbreaker implements the circuit breaker pattern for calls to
// downstream services.
//
// A circuit breaker prevents cascading failures by temporarily blocking calls
// to failing targets. It has three states:
//
//   - CLOSED: Normal operation, calls pass through and failures are counted
//     in a fixed time window
//   - OPEN: Threshold reached, calls are short-circuited until the cooldown
//     has elapsed
//   - HALF-OPEN: Exactly one trial call is let through; success closes the
//     circuit, failure opens it again
//
// State lives in an immutable snapshot swapped with compare-and-swap, so
// racing calls never lose a transition. Every outcome is tied to the state
// generation it was admitted under; late results from an earlier generation
// are ignored.
//
// Usage:
//
//	breakers := circuitbreaker.NewRegistry(settings, logger)
//	breakers.RegisterFallback("reservation-service", func(ctx context.Context, cause error) (any, error) {
//	    return []string{}, nil
//	})
//	res, err := breakers.Call(ctx, "reservation-service", func(ctx context.Context) (any, error) {
//	    return fetchNames(ctx)
//	})
//	if res.Degraded {
//	    // res.Value came from the fallback
//	}
package circuitbreaker
