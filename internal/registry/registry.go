package registry

import (
	"slices"
	"sync"
	"sync/atomic"
)

type snapshot map[string][]ServiceInstance

type Registry struct {
	mutex    sync.Mutex
	services atomic.Pointer[snapshot]
}

func New() *Registry {
	r := &Registry{}
	empty := snapshot{}
	r.services.Store(&empty)
	return r
}

// Register adds the instance, or updates the health of an existing instance
// with the same (serviceName, host, port) without changing its position.
func (r *Registry) Register(instance ServiceInstance) error {
	if err := instance.Validate(); err != nil {
		return err
	}

	r.update(instance.ServiceName, func(current []ServiceInstance) []ServiceInstance {
		next := slices.Clone(current)
		for i := range next {
			if next[i].sameEndpoint(instance.Host, instance.Port) {
				next[i].Healthy = instance.Healthy
				return next
			}
		}
		return append(next, instance)
	})

	return nil
}

// Deregister removes an instance. It reports whether the instance was known.
func (r *Registry) Deregister(serviceName, host string, port int) bool {
	removed := false

	r.update(serviceName, func(current []ServiceInstance) []ServiceInstance {
		next := make([]ServiceInstance, 0, len(current))
		for _, inst := range current {
			if inst.sameEndpoint(host, port) {
				removed = true
				continue
			}
			next = append(next, inst)
		}
		return next
	})

	return removed
}

// SetHealthy flips the health flag of a registered instance.
// Returns true if the status changed, false if it was already in that state
// or the instance is unknown.
func (r *Registry) SetHealthy(serviceName, host string, port int, healthy bool) (changed bool) {
	r.update(serviceName, func(current []ServiceInstance) []ServiceInstance {
		for i := range current {
			if current[i].sameEndpoint(host, port) && current[i].Healthy != healthy {
				next := slices.Clone(current)
				next[i].Healthy = healthy
				changed = true
				return next
			}
		}
		return current
	})

	return changed
}

// Replace swaps the full instance list of a service. Instances that were
// already registered keep their current health.
func (r *Registry) Replace(serviceName string, instances []ServiceInstance) error {
	for _, inst := range instances {
		if err := inst.Validate(); err != nil {
			return err
		}
	}

	r.update(serviceName, func(current []ServiceInstance) []ServiceInstance {
		next := make([]ServiceInstance, 0, len(instances))
		for _, inst := range instances {
			if inst.ServiceName != serviceName {
				continue
			}
			if slices.ContainsFunc(next, func(n ServiceInstance) bool { return n.sameEndpoint(inst.Host, inst.Port) }) {
				continue
			}
			if idx := slices.IndexFunc(current, func(c ServiceInstance) bool { return c.sameEndpoint(inst.Host, inst.Port) }); idx >= 0 {
				inst.Healthy = current[idx].Healthy
			}
			next = append(next, inst)
		}
		return next
	})

	return nil
}

// InstancesOf returns the instances of a service in registration order.
// An unknown service yields an empty slice.
func (r *Registry) InstancesOf(serviceName string) []ServiceInstance {
	current := (*r.services.Load())[serviceName]
	if len(current) == 0 {
		return []ServiceInstance{}
	}
	return slices.Clone(current)
}

// Services returns the names of all services with at least one instance, sorted.
func (r *Registry) Services() []string {
	current := *r.services.Load()
	names := make([]string, 0, len(current))
	for name, instances := range current {
		if len(instances) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (r *Registry) update(serviceName string, fn func([]ServiceInstance) []ServiceInstance) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	old := *r.services.Load()
	next := fn(old[serviceName])

	copied := make(snapshot, len(old)+1)
	for name, instances := range old {
		copied[name] = instances
	}

	if len(next) == 0 {
		delete(copied, serviceName)
	} else {
		copied[serviceName] = next
	}

	r.services.Store(&copied)
}
