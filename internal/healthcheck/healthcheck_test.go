package healthcheck_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/reservations/internal/healthcheck"
	"github.com/angeloszaimis/reservations/internal/metrics"
	"github.com/angeloszaimis/reservations/internal/registry"
	"github.com/angeloszaimis/reservations/pkg/logger"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []metrics.MetricEvent
}

func (r *recordingEmitter) Emit(event metrics.MetricEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) Events() []metrics.MetricEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]metrics.MetricEvent(nil), r.events...)
}

var _ = Describe("Checker", func() {
	var (
		reg       *registry.Registry
		emitter   *recordingEmitter
		checker   *healthcheck.Checker
		healthy   *httptest.Server
		unhealthy *httptest.Server
		ctx       context.Context
		cancel    context.CancelFunc
	)

	healthOf := func(serviceName string, index int) func() bool {
		return func() bool {
			return reg.InstancesOf(serviceName)[index].Healthy
		}
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		reg = registry.New()
		emitter = &recordingEmitter{}

		healthy = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("OK"))
				return
			}
			http.NotFound(w, r)
		}))
		unhealthy = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		checker = healthcheck.NewChecker(reg, 50*time.Millisecond, logger.Discard(), emitter)
	})

	AfterEach(func() {
		cancel()
		healthy.Close()
		unhealthy.Close()
	})

	Describe("CheckAll", func() {
		It("should mark a responding instance healthy", func() {
			Expect(reg.Register(instanceFor(healthy, "reservation-service", false))).To(Succeed())

			checker.CheckAll(ctx)

			Expect(healthOf("reservation-service", 0)()).To(BeTrue())
		})

		It("should mark an instance answering non-200 unhealthy", func() {
			Expect(reg.Register(instanceFor(unhealthy, "reservation-service", true))).To(Succeed())

			checker.CheckAll(ctx)

			Expect(healthOf("reservation-service", 0)()).To(BeFalse())
		})

		It("should mark an unreachable instance unhealthy", func() {
			inst := instanceFor(healthy, "reservation-service", true)
			healthy.Close()
			Expect(reg.Register(inst)).To(Succeed())

			checker.CheckAll(ctx)

			Expect(healthOf("reservation-service", 0)()).To(BeFalse())
		})

		It("should emit an event only when health changes", func() {
			Expect(reg.Register(instanceFor(healthy, "reservation-service", false))).To(Succeed())

			checker.CheckAll(ctx)
			checker.CheckAll(ctx)

			events := emitter.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(metrics.EventHealthChanged))
			Expect(events[0].Service).To(Equal("reservation-service"))
			Expect(events[0].Healthy).To(BeTrue())
		})

		It("should probe instances of every service", func() {
			Expect(reg.Register(instanceFor(healthy, "reservation-service", false))).To(Succeed())
			Expect(reg.Register(instanceFor(unhealthy, "account-service", true))).To(Succeed())

			checker.CheckAll(ctx)

			Expect(healthOf("reservation-service", 0)()).To(BeTrue())
			Expect(healthOf("account-service", 0)()).To(BeFalse())
		})
	})

	Describe("Run", func() {
		It("should keep probing on the interval", func() {
			Expect(reg.Register(instanceFor(healthy, "reservation-service", false))).To(Succeed())

			go checker.Run(ctx)

			Eventually(healthOf("reservation-service", 0)).Should(BeTrue())
		})

		It("should stop when context is cancelled", func() {
			done := make(chan struct{})
			go func() {
				defer close(done)
				checker.Run(ctx)
			}()

			cancel()
			Eventually(done).Should(BeClosed())
		})
	})
})

func instanceFor(server *httptest.Server, serviceName string, healthy bool) registry.ServiceInstance {
	u, err := url.Parse(server.URL)
	Expect(err).NotTo(HaveOccurred())

	host, rawPort, err := net.SplitHostPort(u.Host)
	Expect(err).NotTo(HaveOccurred())

	port, err := strconv.Atoi(rawPort)
	Expect(err).NotTo(HaveOccurred())

	return registry.ServiceInstance{ServiceName: serviceName, Host: host, Port: port, Healthy: healthy}
}
