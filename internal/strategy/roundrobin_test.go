package strategy_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/reservations/internal/registry"
	"github.com/angeloszaimis/reservations/internal/strategy"
)

func instances() []registry.ServiceInstance {
	return []registry.ServiceInstance{
		{ServiceName: "svc", Host: "localhost", Port: 8081, Healthy: true},
		{ServiceName: "svc", Host: "localhost", Port: 8082, Healthy: true},
		{ServiceName: "svc", Host: "localhost", Port: 8083, Healthy: true},
	}
}

var _ = Describe("Roundrobin", func() {
	var (
		strat     strategy.Strategy
		available []registry.ServiceInstance
	)

	BeforeEach(func() {
		strat = strategy.NewRoundRobinStrategy()
		available = instances()
	})

	Describe("Select", func() {
		It("should cycle through instances in order", func() {
			for _, want := range []int{0, 1, 2, 0} {
				got, ok := strat.Select(available)
				Expect(ok).To(BeTrue())
				Expect(got).To(Equal(available[want]))
			}
		})

		It("should distribute load evenly", func() {
			counts := make(map[string]int)
			for i := 0; i < 300; i++ {
				selected, _ := strat.Select(available)
				counts[selected.Addr()]++
			}
			Expect(counts["localhost:8081"]).To(Equal(100))
			Expect(counts["localhost:8082"]).To(Equal(100))
			Expect(counts["localhost:8083"]).To(Equal(100))
		})

		It("should visit every instance exactly once per cycle under concurrency", func() {
			const rounds = 50
			var (
				wg     sync.WaitGroup
				mutex  sync.Mutex
				counts = make(map[string]int)
			)

			for i := 0; i < rounds*len(available); i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					selected, _ := strat.Select(available)
					mutex.Lock()
					counts[selected.Addr()]++
					mutex.Unlock()
				}()
			}
			wg.Wait()

			for _, inst := range available {
				Expect(counts[inst.Addr()]).To(Equal(rounds))
			}
		})

		Context("with empty instance list", func() {
			It("should report no selection and not advance", func() {
				_, ok := strat.Select(nil)
				Expect(ok).To(BeFalse())

				first, _ := strat.Select(available)
				Expect(first).To(Equal(available[0]))
			})
		})
	})
})

var _ = Describe("Random", func() {
	var strat strategy.Strategy

	BeforeEach(func() {
		strat = strategy.NewRandomStrategy()
	})

	It("should select one of the given instances", func() {
		available := instances()
		selected, ok := strat.Select(available)
		Expect(ok).To(BeTrue())
		Expect(available).To(ContainElement(selected))
	})

	It("should distribute across instances over multiple calls", func() {
		available := instances()
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			selected, _ := strat.Select(available)
			seen[selected.Addr()] = true
		}
		Expect(len(seen)).To(BeNumerically(">=", 2))
	})

	It("should report no selection for an empty list", func() {
		_, ok := strat.Select([]registry.ServiceInstance{})
		Expect(ok).To(BeFalse())
	})
})
