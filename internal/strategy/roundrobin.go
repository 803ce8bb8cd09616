package strategy

import (
	"sync/atomic"

	"github.com/angeloszaimis/reservations/internal/registry"
)

type roundRobinStrategy struct {
	current atomic.Uint64
}

// Select advances the cursor once per successful pick and wraps modulo the
// number of instances it was given.
func (rb *roundRobinStrategy) Select(instances []registry.ServiceInstance) (registry.ServiceInstance, bool) {
	if len(instances) == 0 {
		return registry.ServiceInstance{}, false
	}

	n := rb.current.Add(1)

	index := (n - 1) % uint64(len(instances))

	return instances[index], true
}

func NewRoundRobinStrategy() Strategy {
	return &roundRobinStrategy{}
}
