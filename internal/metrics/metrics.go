package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000

type Metrics struct {
	mutex         sync.RWMutex
	requests      map[string]int64
	responseTimes map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	cache         map[EventType]int64
	fallbacks     map[string]int64
	breakerState  map[string]string
	transitions   map[string]map[string]int64
	healthStatus  map[string]bool
	startTime     time.Time
}

type Snapshot struct {
	TotalRequests int64                     `json:"total_requests"`
	Uptime        time.Duration             `json:"uptime"`
	Routes        map[string]RouteMetrics   `json:"routes"`
	Cache         CacheMetrics              `json:"cache"`
	Fallbacks     map[string]int64          `json:"fallbacks"`
	Breakers      map[string]BreakerMetrics `json:"breakers"`
	Components    map[string]bool           `json:"components"`
	DroppedEvents int64                     `json:"dropped_events"`
}

type RouteMetrics struct {
	Requests    int64         `json:"requests"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

type CacheMetrics struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	Errors   int64   `json:"errors"`
	HitRatio float64 `json:"hit_ratio"`
}

type BreakerMetrics struct {
	State       string           `json:"state"`
	Transitions map[string]int64 `json:"transitions"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:      make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		cache:         make(map[EventType]int64),
		fallbacks:     make(map[string]int64),
		breakerState:  make(map[string]string),
		transitions:   make(map[string]map[string]int64),
		healthStatus:  make(map[string]bool),
		startTime:     time.Now(),
	}
}

func (m *Metrics) RecordRequest(route string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.requests[route]++
	m.responseTimes[route] = append(m.responseTimes[route], duration)

	if len(m.responseTimes[route]) > maxSamples {
		m.responseTimes[route] = m.responseTimes[route][1:]
	}

	if m.statusCodes[route] == nil {
		m.statusCodes[route] = make(map[int]int64)
	}
	m.statusCodes[route][statusCode]++
}

func (m *Metrics) RecordCache(result EventType) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.cache[result]++
}

func (m *Metrics) RecordFallback(cause string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.fallbacks[cause]++
}

func (m *Metrics) RecordTransition(breaker, to string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.breakerState[breaker] = to
	if m.transitions[breaker] == nil {
		m.transitions[breaker] = make(map[string]int64)
	}
	m.transitions[breaker][to]++
}

func (m *Metrics) UpdateHealthStatus(component string, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.healthStatus[component] = healthy
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:     time.Since(m.startTime),
		Routes:     make(map[string]RouteMetrics, len(m.requests)),
		Fallbacks:  make(map[string]int64, len(m.fallbacks)),
		Breakers:   make(map[string]BreakerMetrics, len(m.breakerState)),
		Components: make(map[string]bool, len(m.healthStatus)),
		Cache: CacheMetrics{
			Hits:   m.cache[EventCacheHit],
			Misses: m.cache[EventCacheMiss],
			Errors: m.cache[EventCacheError],
		},
	}

	if lookups := snap.Cache.Hits + snap.Cache.Misses; lookups > 0 {
		snap.Cache.HitRatio = float64(snap.Cache.Hits) / float64(lookups)
	}

	for route, count := range m.requests {
		snap.TotalRequests += count

		rm := RouteMetrics{
			Requests:    count,
			StatusCodes: make(map[int]int64, len(m.statusCodes[route])),
		}
		for code, n := range m.statusCodes[route] {
			rm.StatusCodes[code] = n
		}

		durations := m.responseTimes[route]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			rm.AvgResponse = average(sorted)
			rm.P50Response = percentile(sorted, 0.50)
			rm.P95Response = percentile(sorted, 0.95)
			rm.P99Response = percentile(sorted, 0.99)
		}

		snap.Routes[route] = rm
	}

	for cause, n := range m.fallbacks {
		snap.Fallbacks[cause] = n
	}

	for name, state := range m.breakerState {
		bm := BreakerMetrics{State: state, Transitions: make(map[string]int64)}
		for to, n := range m.transitions[name] {
			bm.Transitions[to] = n
		}
		snap.Breakers[name] = bm
	}

	for component, healthy := range m.healthStatus {
		snap.Components[component] = healthy
	}

	return snap
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
