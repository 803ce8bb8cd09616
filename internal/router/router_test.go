package router_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/reservations/internal/circuitbreaker"
	"github.com/angeloszaimis/reservations/internal/loadbalancer"
	"github.com/angeloszaimis/reservations/internal/metrics"
	"github.com/angeloszaimis/reservations/internal/registry"
	"github.com/angeloszaimis/reservations/internal/router"
	"github.com/angeloszaimis/reservations/internal/strategy"
	"github.com/angeloszaimis/reservations/pkg/logger"
)

const service = "reservation-service"

type recordingEmitter struct {
	mu     sync.Mutex
	events []metrics.MetricEvent
}

func (r *recordingEmitter) Emit(event metrics.MetricEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) Types() []metrics.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()

	types := make([]metrics.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

var _ = Describe("Router", func() {
	var (
		reg      *registry.Registry
		breakers *circuitbreaker.Registry
		emitter  *recordingEmitter
		rt       *router.Router
		ctx      context.Context
		settings circuitbreaker.Settings
	)

	newBackend := func(name string, status int, hits *atomic.Int32) *httptest.Server {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits != nil {
				hits.Add(1)
			}
			w.Header().Set("X-Instance", name)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(name))
		}))
		DeferCleanup(server.Close)
		return server
	}

	register := func(server *httptest.Server, healthy bool) {
		Expect(reg.Register(instanceFor(server, service, healthy))).To(Succeed())
	}

	emptyList := func(ctx context.Context, cause error) (*router.Response, error) {
		return &router.Response{StatusCode: http.StatusOK, Body: []byte("[]")}, nil
	}

	BeforeEach(func() {
		ctx = context.Background()
		reg = registry.New()
		emitter = &recordingEmitter{}
		settings = circuitbreaker.Settings{
			FailureThreshold: 3,
			FailureWindow:    10 * time.Second,
			Cooldown:         time.Minute,
			CallTimeout:      time.Second,
		}
	})

	JustBeforeEach(func() {
		breakers = circuitbreaker.NewRegistry(settings, logger.Discard())
		lb := loadbalancer.NewLoadBalancer(reg, strategy.NewRoundRobinStrategy)
		rt = router.NewRouter(lb, breakers, &http.Client{}, emitter, logger.Discard())
	})

	Describe("Route", func() {
		It("should forward method, path, query, headers and body", func() {
			var seen *http.Request
			var seenBody []byte
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r
				seenBody, _ = io.ReadAll(r.Body)
				w.WriteHeader(http.StatusCreated)
			}))
			DeferCleanup(server.Close)
			register(server, true)

			res, err := rt.Route(ctx, service, router.Request{
				Method:   http.MethodPost,
				Path:     "/reservations",
				RawQuery: "source=gateway",
				Header:   http.Header{"Content-Type": []string{"application/json"}},
				Body:     []byte(`{"reservationName":"Vikash"}`),
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(res.StatusCode).To(Equal(http.StatusCreated))
			Expect(res.Degraded).To(BeFalse())
			Expect(seen.Method).To(Equal(http.MethodPost))
			Expect(seen.URL.Path).To(Equal("/reservations"))
			Expect(seen.URL.RawQuery).To(Equal("source=gateway"))
			Expect(seen.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(string(seenBody)).To(Equal(`{"reservationName":"Vikash"}`))
			Expect(emitter.Types()).To(Equal([]metrics.EventType{metrics.EventRouteSuccess}))
		})

		It("should rotate over healthy instances", func() {
			register(newBackend("a", http.StatusOK, nil), true)
			register(newBackend("b", http.StatusOK, nil), true)
			register(newBackend("c", http.StatusOK, nil), false)

			var bodies []string
			for range 4 {
				res, err := rt.Route(ctx, service, router.Request{Path: "/reservations"})
				Expect(err).NotTo(HaveOccurred())
				bodies = append(bodies, string(res.Body))
			}

			Expect(bodies).To(Equal([]string{"a", "b", "a", "b"}))
		})

		It("should fail with ErrNoHealthyInstance when nothing is healthy", func() {
			register(newBackend("a", http.StatusOK, nil), false)

			_, err := rt.Route(ctx, service, router.Request{Path: "/reservations"})
			Expect(err).To(MatchError(router.ErrNoHealthyInstance))
			Expect(err.Error()).To(ContainSubstring(service))
			Expect(emitter.Types()).To(Equal([]metrics.EventType{metrics.EventRouteUnavailable}))
		})

		It("should map non-2xx answers to DownstreamError", func() {
			register(newBackend("a", http.StatusInternalServerError, nil), true)

			_, err := rt.Route(ctx, service, router.Request{Path: "/reservations"})

			var downstream *router.DownstreamError
			Expect(errors.As(err, &downstream)).To(BeTrue())
			Expect(downstream.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(emitter.Types()).To(Equal([]metrics.EventType{metrics.EventRouteFailure}))
			Expect(breakers.GetBreaker(service).Failures()).To(Equal(1))
		})

		It("should serve the fallback when the call fails", func() {
			register(newBackend("a", http.StatusBadGateway, nil), true)
			rt.RegisterFallback(service, emptyList)

			res, err := rt.Route(ctx, service, router.Request{Path: "/reservations"})

			Expect(err).NotTo(HaveOccurred())
			Expect(res.Degraded).To(BeTrue())
			Expect(string(res.Body)).To(Equal("[]"))
			Expect(emitter.Types()).To(Equal([]metrics.EventType{metrics.EventRouteFallback}))
		})

		It("should short-circuit once the circuit is open", func() {
			var hits atomic.Int32
			register(newBackend("a", http.StatusInternalServerError, &hits), true)
			rt.RegisterFallback(service, emptyList)

			for range 3 {
				_, _ = rt.Route(ctx, service, router.Request{Path: "/reservations"})
			}
			Expect(breakers.Stats()).To(HaveKeyWithValue(service, circuitbreaker.StateOpen))
			Expect(hits.Load()).To(BeEquivalentTo(3))

			res, err := rt.Route(ctx, service, router.Request{Path: "/reservations"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Degraded).To(BeTrue())
			Expect(hits.Load()).To(BeEquivalentTo(3))
		})

		It("should return ErrOpen when the circuit is open and no fallback exists", func() {
			register(newBackend("a", http.StatusInternalServerError, nil), true)

			for range 3 {
				_, _ = rt.Route(ctx, service, router.Request{Path: "/reservations"})
			}

			_, err := rt.Route(ctx, service, router.Request{Path: "/reservations"})
			Expect(err).To(MatchError(circuitbreaker.ErrOpen))
		})

		Context("with a slow instance", func() {
			BeforeEach(func() {
				settings.CallTimeout = 50 * time.Millisecond
			})

			It("should count the timeout as a failure", func() {
				release := make(chan struct{})
				slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					select {
					case <-release:
					case <-r.Context().Done():
					}
				}))
				DeferCleanup(slow.Close)
				DeferCleanup(func() { close(release) })
				register(slow, true)

				_, err := rt.Route(ctx, service, router.Request{Path: "/reservations"})
				Expect(err).To(MatchError(circuitbreaker.ErrTimeout))
				Expect(breakers.GetBreaker(service).Failures()).To(Equal(1))
			})
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
