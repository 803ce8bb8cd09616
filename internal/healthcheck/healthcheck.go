package healthcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/angeloszaimis/reservations/internal/metrics"
	"github.com/angeloszaimis/reservations/internal/registry"
)

const probeTimeout = 5 * time.Second

type Checker struct {
	registry *registry.Registry
	client   *http.Client
	interval time.Duration
	logger   *slog.Logger
	emitter  metrics.Emitter
}

// NewChecker builds a checker for every instance in reg. emitter may be nil.
func NewChecker(reg *registry.Registry, interval time.Duration, logger *slog.Logger, emitter metrics.Emitter) *Checker {
	return &Checker{
		registry: reg,
		client:   &http.Client{Timeout: probeTimeout},
		interval: interval,
		logger:   logger,
		emitter:  emitter,
	}
}

// Run probes every registered instance each interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Health check stopped")
			return

		case <-ticker.C:
			c.CheckAll(ctx)
		}
	}
}

// CheckAll probes every registered instance once, in parallel.
func (c *Checker) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, service := range c.registry.Services() {
		for _, instance := range c.registry.InstancesOf(service) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.check(ctx, instance)
			}()
		}
	}
	wg.Wait()
}

func (c *Checker) check(ctx context.Context, instance registry.ServiceInstance) {
	healthy := c.probe(ctx, instance)
	if ctx.Err() != nil {
		return
	}

	changed := c.registry.SetHealthy(instance.ServiceName, instance.Host, instance.Port, healthy)
	if !changed {
		return
	}

	if healthy {
		c.logger.Info("Instance is back up",
			slog.String("service", instance.ServiceName),
			slog.String("instance", instance.Addr()))
	} else {
		c.logger.Warn("Instance is down",
			slog.String("service", instance.ServiceName),
			slog.String("instance", instance.Addr()))
	}

	if c.emitter != nil {
		c.emitter.Emit(metrics.MetricEvent{
			Type:      metrics.EventHealthChanged,
			Timestamp: time.Now(),
			Service:   instance.ServiceName,
			Instance:  instance.Addr(),
			Healthy:   healthy,
		})
	}
}

func (c *Checker) probe(ctx context.Context, instance registry.ServiceInstance) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instance.BaseURL()+"/health", nil)
	if err != nil {
		return false
	}

	res, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	return res.StatusCode == http.StatusOK
}
