package loadbalancer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/angeloszaimis/reservations/internal/registry"
	"github.com/angeloszaimis/reservations/internal/strategy"
)

var ErrNotAvailable = errors.New("no healthy instance available")

// InstanceSource is the read side of the service registry.
type InstanceSource interface {
	InstancesOf(serviceName string) []registry.ServiceInstance
}

type LoadBalancer struct {
	source     InstanceSource
	newStrat   strategy.Factory
	strategies sync.Map // serviceName -> strategy.Strategy
}

func NewLoadBalancer(source InstanceSource, factory strategy.Factory) *LoadBalancer {
	return &LoadBalancer{
		source:   source,
		newStrat: factory,
	}
}

// Choose picks a healthy instance of serviceName. Each service has its own
// strategy instance, created on first use and kept for the process lifetime.
func (lb *LoadBalancer) Choose(serviceName string) (registry.ServiceInstance, error) {
	healthy := filterHealthy(lb.source.InstancesOf(serviceName))
	if len(healthy) == 0 {
		return registry.ServiceInstance{}, fmt.Errorf("%s: %w", serviceName, ErrNotAvailable)
	}

	chosen, ok := lb.strategyFor(serviceName).Select(healthy)
	if !ok {
		return registry.ServiceInstance{}, fmt.Errorf("%s: %w", serviceName, ErrNotAvailable)
	}

	return chosen, nil
}

func (lb *LoadBalancer) strategyFor(serviceName string) strategy.Strategy {
	if s, ok := lb.strategies.Load(serviceName); ok {
		return s.(strategy.Strategy)
	}

	s, _ := lb.strategies.LoadOrStore(serviceName, lb.newStrat())
	return s.(strategy.Strategy)
}

func filterHealthy(instances []registry.ServiceInstance) []registry.ServiceInstance {
	healthy := make([]registry.ServiceInstance, 0, len(instances))

	for _, inst := range instances {
		if inst.Healthy {
			healthy = append(healthy, inst)
		}
	}

	return healthy
}
