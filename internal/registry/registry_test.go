package registry_test

import (
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/reservations/internal/registry"
)

var _ = Describe("Registry", func() {
	var reg *registry.Registry

	instance := func(host string, port int, healthy bool) registry.ServiceInstance {
		return registry.ServiceInstance{ServiceName: "svc", Host: host, Port: port, Healthy: healthy}
	}

	BeforeEach(func() {
		reg = registry.New()
	})

	Describe("InstancesOf", func() {
		It("should return an empty slice for an unknown service", func() {
			instances := reg.InstancesOf("unknown")
			Expect(instances).NotTo(BeNil())
			Expect(instances).To(BeEmpty())
		})

		It("should keep registration order", func() {
			Expect(reg.Register(instance("a", 8001, true))).To(Succeed())
			Expect(reg.Register(instance("b", 8002, true))).To(Succeed())
			Expect(reg.Register(instance("c", 8003, false))).To(Succeed())

			instances := reg.InstancesOf("svc")
			Expect(instances).To(HaveLen(3))
			Expect(instances[0].Host).To(Equal("a"))
			Expect(instances[2].Host).To(Equal("c"))
		})

		It("should return a copy the caller can modify", func() {
			Expect(reg.Register(instance("a", 8001, true))).To(Succeed())
			instances := reg.InstancesOf("svc")
			instances[0].Healthy = false
			Expect(reg.InstancesOf("svc")[0].Healthy).To(BeTrue())
		})
	})

	Describe("Register", func() {
		It("should update health in place when re-registering", func() {
			Expect(reg.Register(instance("a", 8001, true))).To(Succeed())
			Expect(reg.Register(instance("b", 8002, true))).To(Succeed())
			Expect(reg.Register(instance("a", 8001, false))).To(Succeed())

			instances := reg.InstancesOf("svc")
			Expect(instances).To(HaveLen(2))
			Expect(instances[0]).To(Equal(instance("a", 8001, false)))
		})

		It("should treat the same host on another port as a new instance", func() {
			Expect(reg.Register(instance("a", 8001, true))).To(Succeed())
			Expect(reg.Register(instance("a", 8002, true))).To(Succeed())
			Expect(reg.InstancesOf("svc")).To(HaveLen(2))
		})

		It("should reject invalid instances", func() {
			Expect(reg.Register(registry.ServiceInstance{Host: "a", Port: 1})).NotTo(Succeed())
			Expect(reg.Register(registry.ServiceInstance{ServiceName: "svc", Port: 1})).NotTo(Succeed())
			Expect(reg.Register(registry.ServiceInstance{ServiceName: "svc", Host: "a", Port: 70000})).NotTo(Succeed())
			Expect(reg.Services()).To(BeEmpty())
		})
	})

	Describe("Deregister", func() {
		It("should remove only the matching instance", func() {
			Expect(reg.Register(instance("a", 8001, true))).To(Succeed())
			Expect(reg.Register(instance("b", 8002, true))).To(Succeed())

			Expect(reg.Deregister("svc", "a", 8001)).To(BeTrue())
			Expect(reg.InstancesOf("svc")).To(ConsistOf(instance("b", 8002, true)))
		})

		It("should report unknown instances", func() {
			Expect(reg.Deregister("svc", "a", 8001)).To(BeFalse())
		})

		It("should drop the service once empty", func() {
			Expect(reg.Register(instance("a", 8001, true))).To(Succeed())
			reg.Deregister("svc", "a", 8001)
			Expect(reg.Services()).To(BeEmpty())
			Expect(reg.InstancesOf("svc")).To(BeEmpty())
		})
	})

	Describe("SetHealthy", func() {
		BeforeEach(func() {
			Expect(reg.Register(instance("a", 8001, true))).To(Succeed())
		})

		It("should report a change", func() {
			Expect(reg.SetHealthy("svc", "a", 8001, false)).To(BeTrue())
			Expect(reg.InstancesOf("svc")[0].Healthy).To(BeFalse())
		})

		It("should return false when setting the same status", func() {
			Expect(reg.SetHealthy("svc", "a", 8001, true)).To(BeFalse())
		})

		It("should ignore unknown instances", func() {
			Expect(reg.SetHealthy("svc", "b", 8001, false)).To(BeFalse())
			Expect(reg.SetHealthy("other", "a", 8001, false)).To(BeFalse())
		})
	})

	Describe("Replace", func() {
		It("should swap the instance list and keep known health", func() {
			Expect(reg.Register(instance("a", 8001, false))).To(Succeed())

			err := reg.Replace("svc", []registry.ServiceInstance{
				instance("a", 8001, true),
				instance("b", 8002, true),
				instance("b", 8002, true),
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(reg.InstancesOf("svc")).To(Equal([]registry.ServiceInstance{
				instance("a", 8001, false),
				instance("b", 8002, true),
			}))
		})

		It("should clear the service with an empty list", func() {
			Expect(reg.Register(instance("a", 8001, true))).To(Succeed())
			Expect(reg.Replace("svc", nil)).To(Succeed())
			Expect(reg.InstancesOf("svc")).To(BeEmpty())
		})
	})

	Describe("Services", func() {
		It("should list service names sorted", func() {
			Expect(reg.Register(registry.ServiceInstance{ServiceName: "zeta", Host: "a", Port: 1})).To(Succeed())
			Expect(reg.Register(registry.ServiceInstance{ServiceName: "alpha", Host: "a", Port: 1})).To(Succeed())
			Expect(reg.Services()).To(Equal([]string{"alpha", "zeta"}))
		})
	})

	Describe("Concurrent access", func() {
		It("should handle concurrent writers and readers safely", func() {
			const goroutines = 50

			var wg sync.WaitGroup
			wg.Add(goroutines * 2)

			for i := 0; i < goroutines; i++ {
				go func(id int) {
					defer wg.Done()
					_ = reg.Register(instance(fmt.Sprintf("host-%d", id), 8000, id%2 == 0))
				}(i)
				go func() {
					defer wg.Done()
					_ = reg.InstancesOf("svc")
				}()
			}

			wg.Wait()
			Expect(reg.InstancesOf("svc")).To(HaveLen(goroutines))
		})
	})
})

var _ = Describe("ServiceInstance", func() {
	It("should format address and base URL", func() {
		inst := registry.ServiceInstance{ServiceName: "svc", Host: "localhost", Port: 8000}
		Expect(inst.Addr()).To(Equal("localhost:8000"))
		Expect(inst.BaseURL()).To(Equal("http://localhost:8000"))
	})
})
