package circuitbreaker

import (
	"context"
	"log/slog"
	"sync"
)

// Fallback produces a substitute result when a call fails or is short-circuited.
// cause is the error that triggered it.
type Fallback func(ctx context.Context, cause error) (any, error)

// Result is what Call hands back. Degraded is set when Value came from a fallback.
type Result struct {
	Value    any
	Degraded bool
	Cause    error
}

// Registry owns one breaker per target plus the fallbacks registered for them.
type Registry struct {
	mutex     sync.RWMutex
	breakers  map[string]*CircuitBreaker
	fallbacks map[string]Fallback
	settings  Settings
	opts      []Option
	logger    *slog.Logger
}

func NewRegistry(settings Settings, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		fallbacks: make(map[string]Fallback),
		settings:  settings,
		logger:    logger,
	}

	r.opts = append([]Option{WithStateListener(r.logTransition)}, opts...)
	return r
}

func (r *Registry) GetBreaker(target string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[target]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[target]; exists {
		return cb
	}

	cb = NewCircuitBreaker(target, r.settings, r.opts...)
	r.breakers[target] = cb
	return cb
}

func (r *Registry) RegisterFallback(target string, fallback Fallback) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.fallbacks[target] = fallback
}

// Call runs op through the breaker of target. Failures and short-circuits are
// replaced by the target's fallback when one is registered; otherwise the
// error is returned. A caller that gives up gets ctx.Err() and no fallback.
func (r *Registry) Call(ctx context.Context, target string, op Operation) (Result, error) {
	value, err := r.GetBreaker(target).Execute(ctx, op)
	if err == nil {
		return Result{Value: value}, nil
	}

	if ctx.Err() != nil {
		return Result{Cause: err}, err
	}

	r.mutex.RLock()
	fallback, ok := r.fallbacks[target]
	r.mutex.RUnlock()

	if !ok {
		return Result{Cause: err}, err
	}

	r.logger.Debug("Serving fallback",
		slog.String("target", target),
		slog.Any("cause", err))

	value, fbErr := fallback(ctx, err)
	if fbErr != nil {
		return Result{Cause: err}, fbErr
	}

	return Result{Value: value, Degraded: true, Cause: err}, nil
}

func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.breakers = make(map[string]*CircuitBreaker)
}

func (r *Registry) Stats() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]State, len(r.breakers))
	for target, cb := range r.breakers {
		stats[target] = cb.State()
	}
	return stats
}

func (r *Registry) logTransition(target string, from, to State) {
	level := slog.LevelInfo
	if to == StateOpen {
		level = slog.LevelWarn
	}

	r.logger.Log(context.Background(), level, "Circuit breaker state changed",
		slog.String("target", target),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
}
