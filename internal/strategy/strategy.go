package strategy

import (
	"github.com/angeloszaimis/reservations/internal/registry"
)

// Strategy picks one instance out of an already filtered, healthy list.
// It reports false only for an empty list.
type Strategy interface {
	Select(instances []registry.ServiceInstance) (registry.ServiceInstance, bool)
}

// Factory builds a fresh Strategy; the load balancer keeps one per service
// so that selection state is never shared between services.
type Factory func() Strategy
