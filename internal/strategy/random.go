package strategy

import (
	"math/rand/v2"

	"github.com/angeloszaimis/reservations/internal/registry"
)

type randomStrategy struct{}

func (r *randomStrategy) Select(instances []registry.ServiceInstance) (registry.ServiceInstance, bool) {
	if len(instances) == 0 {
		return registry.ServiceInstance{}, false
	}

	return instances[rand.IntN(len(instances))], true
}

func NewRandomStrategy() Strategy {
	return &randomStrategy{}
}
