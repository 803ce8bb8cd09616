package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/reservations/internal/circuitbreaker"
	"github.com/angeloszaimis/reservations/internal/metrics"
	"github.com/angeloszaimis/reservations/internal/registry"
)

const maxBodyBytes = 10 << 20

var ErrNoHealthyInstance = errors.New("no healthy instance")

// DownstreamError is a non-2xx answer from the chosen instance.
type DownstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("downstream responded with status %d", e.StatusCode)
}

type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Degraded   bool
}

// Fallback builds the response served when a service call fails or its
// circuit is open.
type Fallback func(ctx context.Context, cause error) (*Response, error)

// Balancer picks the instance a call goes to.
type Balancer interface {
	Choose(serviceName string) (registry.ServiceInstance, error)
}

type Router struct {
	balancer Balancer
	breakers *circuitbreaker.Registry
	client   *http.Client
	emitter  metrics.Emitter
	logger   *slog.Logger
}

// NewRouter wires a router. emitter may be nil.
func NewRouter(balancer Balancer, breakers *circuitbreaker.Registry, client *http.Client, emitter metrics.Emitter, logger *slog.Logger) *Router {
	if client == nil {
		client = http.DefaultClient
	}

	return &Router{
		balancer: balancer,
		breakers: breakers,
		client:   client,
		emitter:  emitter,
		logger:   logger,
	}
}

func (r *Router) RegisterFallback(serviceName string, fallback Fallback) {
	r.breakers.RegisterFallback(serviceName, func(ctx context.Context, cause error) (any, error) {
		return fallback(ctx, cause)
	})
}

// Route sends req to a healthy instance of serviceName through the service's
// circuit breaker. Exactly one outcome event is emitted per call.
func (r *Router) Route(ctx context.Context, serviceName string, req Request) (*Response, error) {
	start := time.Now()

	instance, err := r.balancer.Choose(serviceName)
	if err != nil {
		r.logger.Warn("No healthy instance available", slog.String("service", serviceName))
		r.emit(metrics.EventRouteUnavailable, serviceName, "", 0, 0)
		return nil, fmt.Errorf("%s: %w", serviceName, ErrNoHealthyInstance)
	}

	result, err := r.breakers.Call(ctx, serviceName, func(ctx context.Context) (any, error) {
		return r.forward(ctx, instance, req)
	})
	duration := time.Since(start)

	if err != nil {
		status := 0
		var downstream *DownstreamError
		if errors.As(err, &downstream) {
			status = downstream.StatusCode
		}

		r.logger.Warn("Routed call failed",
			slog.String("service", serviceName),
			slog.String("instance", instance.Addr()),
			slog.Any("error", err))
		r.emit(metrics.EventRouteFailure, serviceName, instance.Addr(), duration, status)
		return nil, err
	}

	res, ok := result.Value.(*Response)
	if !ok || res == nil {
		r.emit(metrics.EventRouteFailure, serviceName, instance.Addr(), duration, 0)
		return nil, fmt.Errorf("%s: unexpected result type %T", serviceName, result.Value)
	}

	if result.Degraded {
		r.logger.Info("Serving fallback response",
			slog.String("service", serviceName),
			slog.Any("cause", result.Cause))
		r.emit(metrics.EventRouteFallback, serviceName, instance.Addr(), duration, res.StatusCode)

		degraded := *res
		degraded.Degraded = true
		return &degraded, nil
	}

	r.emit(metrics.EventRouteSuccess, serviceName, instance.Addr(), duration, res.StatusCode)
	return res, nil
}

func (r *Router) forward(ctx context.Context, instance registry.ServiceInstance, req Request) (*Response, error) {
	target := instance.BaseURL() + req.Path
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	outbound, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if req.Header != nil {
		outbound.Header = req.Header.Clone()
	}

	res, err := r.client.Do(outbound)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", instance.Addr(), err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", instance.Addr(), err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &DownstreamError{StatusCode: res.StatusCode, Body: payload}
	}

	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header.Clone(),
		Body:       payload,
	}, nil
}

func (r *Router) emit(outcome metrics.EventType, service, instance string, duration time.Duration, statusCode int) {
	if r.emitter == nil {
		return
	}

	r.emitter.Emit(metrics.MetricEvent{
		Type:       outcome,
		Timestamp:  time.Now(),
		Service:    service,
		Instance:   instance,
		Duration:   duration,
		StatusCode: statusCode,
	})
}
