package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Blocking requests
	StateHalfOpen              // Testing with one request
)

var (
	ErrOpen    = errors.New("circuit breaker is open")
	ErrTimeout = errors.New("downstream call timed out")
)

// Operation is the guarded call. It should honour ctx cancellation.
type Operation func(ctx context.Context) (any, error)

type Settings struct {
	FailureThreshold int           // failures inside FailureWindow that trip the breaker
	FailureWindow    time.Duration // fixed window the failures are counted in
	Cooldown         time.Duration // time spent OPEN before a trial call is allowed
	CallTimeout      time.Duration // zero disables the per-call timeout, except for HALF-OPEN trials
}

type Option func(*CircuitBreaker)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// WithStateListener is called after every successful state transition.
func WithStateListener(fn func(name string, from, to State)) Option {
	return func(cb *CircuitBreaker) {
		cb.onChange = fn
	}
}

// snapshot is immutable; every transition swaps in a new one.
type snapshot struct {
	state       State
	failures    int
	windowStart time.Time
	changedAt   time.Time
	generation  uint64 // bumped on every state change
}

// ticket ties a call outcome to the state generation it was admitted under.
type ticket struct {
	generation uint64
	trial      bool
}

type CircuitBreaker struct {
	name     string
	settings Settings
	now      func() time.Time
	onChange func(name string, from, to State)
	current  atomic.Pointer[snapshot]
}

func NewCircuitBreaker(name string, settings Settings, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:     name,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}

	cb.current.Store(&snapshot{state: StateClosed, changedAt: cb.now()})
	return cb
}

func (cb *CircuitBreaker) State() State {
	return cb.current.Load().state
}

// Failures returns the failure count of the current window.
func (cb *CircuitBreaker) Failures() int {
	return cb.current.Load().failures
}

// Execute runs op if the breaker admits it. A call that errors or outlives
// CallTimeout counts as a failure. A HALF-OPEN trial without CallTimeout is
// bounded by Cooldown so that it cannot hold the breaker half-open forever.
// If the caller's ctx ends first, Execute returns ctx.Err() right away; op
// keeps running and its outcome is recorded once it returns.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation) (any, error) {
	t, ok := cb.allow()
	if !ok {
		return nil, ErrOpen
	}

	timeout := cb.settings.CallTimeout
	if timeout <= 0 && t.trial {
		timeout = cb.settings.Cooldown
	}

	callCtx, cancel := context.WithoutCancel(ctx), context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(callCtx, timeout)
	}

	type outcome struct {
		value any
		err   error
	}

	var once sync.Once
	record := func(success bool) {
		once.Do(func() { cb.record(t, success) })
	}

	done := make(chan outcome, 1)
	go func() {
		value, err := op(callCtx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		cancel()
		record(out.err == nil)
		return out.value, out.err

	case <-callCtx.Done():
		cancel()
		select {
		case out := <-done:
			if out.err == nil {
				record(true)
				return out.value, nil
			}
		default:
		}
		record(false)
		return nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)

	case <-ctx.Done():
		go func() {
			out := <-done
			cancel()
			record(out.err == nil)
		}()
		return nil, ctx.Err()
	}
}

func (cb *CircuitBreaker) allow() (ticket, bool) {
	for {
		old := cb.current.Load()

		switch old.state {
		case StateClosed:
			return ticket{generation: old.generation}, true

		case StateOpen:
			now := cb.now()
			if now.Sub(old.changedAt) < cb.settings.Cooldown {
				return ticket{}, false
			}

			next := &snapshot{
				state:       StateHalfOpen,
				failures:    old.failures,
				windowStart: old.windowStart,
				changedAt:   now,
				generation:  old.generation + 1,
			}
			if cb.current.CompareAndSwap(old, next) {
				cb.notify(old.state, next.state)
				return ticket{generation: next.generation, trial: true}, true
			}

		default:
			// HALF-OPEN: the single trial call is already in flight.
			return ticket{}, false
		}
	}
}

func (cb *CircuitBreaker) record(t ticket, success bool) {
	for {
		old := cb.current.Load()
		if old.generation != t.generation {
			return
		}

		now := cb.now()
		var next *snapshot

		switch old.state {
		case StateClosed:
			if success {
				return
			}

			failures, windowStart := old.failures+1, old.windowStart
			if old.failures == 0 || now.Sub(old.windowStart) >= cb.settings.FailureWindow {
				failures, windowStart = 1, now
			}

			if failures >= cb.settings.FailureThreshold {
				next = &snapshot{
					state:       StateOpen,
					failures:    failures,
					windowStart: windowStart,
					changedAt:   now,
					generation:  old.generation + 1,
				}
			} else {
				next = &snapshot{
					state:       StateClosed,
					failures:    failures,
					windowStart: windowStart,
					changedAt:   old.changedAt,
					generation:  old.generation,
				}
			}

		case StateHalfOpen:
			if !t.trial {
				return
			}

			if success {
				next = &snapshot{state: StateClosed, changedAt: now, generation: old.generation + 1}
			} else {
				next = &snapshot{
					state:       StateOpen,
					failures:    old.failures,
					windowStart: old.windowStart,
					changedAt:   now,
					generation:  old.generation + 1,
				}
			}

		default:
			return
		}

		if cb.current.CompareAndSwap(old, next) {
			if next.state != old.state {
				cb.notify(old.state, next.state)
			}
			return
		}
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.onChange != nil {
		cb.onChange(cb.name, from, to)
	}
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
