package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/angeloszaimis/reservations/internal/circuitbreaker"
)

const maxSamples = 1000

type Metrics struct {
	mutex         sync.RWMutex
	requests      map[string]int64
	outcomes      map[string]map[EventType]int64
	responseTimes map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	selections    map[string]int64
	healthStatus  map[string]bool
	startTime     time.Time
}

type Snapshot struct {
	TotalRequests int64                           `json:"total_requests"`
	Uptime        time.Duration                   `json:"uptime"`
	Strategy      string                          `json:"strategy"`
	Services      map[string]ServiceMetrics       `json:"services"`
	Instances     map[string]InstanceMetrics      `json:"instances"`
	Breakers      map[string]circuitbreaker.State `json:"breakers,omitempty"`
}

type ServiceMetrics struct {
	Requests    int64         `json:"requests"`
	Successes   int64         `json:"successes"`
	Failures    int64         `json:"failures"`
	Fallbacks   int64         `json:"fallbacks"`
	Unavailable int64         `json:"unavailable"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

type InstanceMetrics struct {
	Selections int64 `json:"selections"`
	Healthy    bool  `json:"healthy"`
}

// RecordOutcome counts one routed call. instance is empty when none was chosen.
func (m *Metrics) RecordOutcome(outcome EventType, service, instance string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.requests[service]++

	if m.outcomes[service] == nil {
		m.outcomes[service] = make(map[EventType]int64)
	}
	m.outcomes[service][outcome]++

	if instance != "" {
		m.selections[instance]++
	}

	if outcome == EventRouteUnavailable {
		return
	}

	m.responseTimes[service] = append(m.responseTimes[service], duration)
	if len(m.responseTimes[service]) > maxSamples {
		m.responseTimes[service] = m.responseTimes[service][1:]
	}

	if statusCode != 0 {
		if m.statusCodes[service] == nil {
			m.statusCodes[service] = make(map[int]int64)
		}
		m.statusCodes[service][statusCode]++
	}
}

func (m *Metrics) UpdateHealthStatus(instance string, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.healthStatus[instance] = healthy
}

func (m *Metrics) Snapshot(strategy string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:    time.Since(m.startTime),
		Strategy:  strategy,
		Services:  make(map[string]ServiceMetrics),
		Instances: make(map[string]InstanceMetrics),
	}

	for service, requests := range m.requests {
		snap.TotalRequests += requests

		outcomes := m.outcomes[service]
		sm := ServiceMetrics{
			Requests:    requests,
			Successes:   outcomes[EventRouteSuccess],
			Failures:    outcomes[EventRouteFailure],
			Fallbacks:   outcomes[EventRouteFallback],
			Unavailable: outcomes[EventRouteUnavailable],
			StatusCodes: make(map[int]int64, len(m.statusCodes[service])),
		}
		for code, count := range m.statusCodes[service] {
			sm.StatusCodes[code] = count
		}

		durations := m.responseTimes[service]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			sm.AvgResponse = average(sorted)
			sm.P50Response = percentile(sorted, 0.50)
			sm.P95Response = percentile(sorted, 0.95)
			sm.P99Response = percentile(sorted, 0.99)
		}

		snap.Services[service] = sm
	}

	for instance, selections := range m.selections {
		snap.Instances[instance] = InstanceMetrics{Selections: selections, Healthy: m.healthStatus[instance]}
	}
	for instance, healthy := range m.healthStatus {
		im := snap.Instances[instance]
		im.Healthy = healthy
		snap.Instances[instance] = im
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:      make(map[string]int64),
		outcomes:      make(map[string]map[EventType]int64),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		selections:    make(map[string]int64),
		healthStatus:  make(map[string]bool),
		startTime:     time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
