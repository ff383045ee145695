package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "item_enricher"

type promMetrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	cache       *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
	transitions *prometheus.CounterVec
	componentUp *prometheus.GaugeVec
	dropped     prometheus.Counter
}

func newPromMetrics() *promMetrics {
	m := &promMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"route"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_fallbacks_total",
			Help:      "Degraded enrichments by failure category.",
		}, []string{"cause"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions by breaker and target state.",
		}, []string{"breaker", "to"}),
		componentUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "component_up",
			Help:      "1 when the component's last health probe succeeded.",
		}, []string{"component"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metric_events_dropped_total",
			Help:      "Metric events dropped because the collector buffer was full.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.cache, m.fallbacks, m.transitions, m.componentUp, m.dropped,
	)

	return m
}

func (m *promMetrics) observe(event MetricEvent) {
	switch event.Type {
	case EventRequestCompleted:
		m.requests.WithLabelValues(event.Route, strconv.Itoa(event.StatusCode)).Inc()
		m.latency.WithLabelValues(event.Route).Observe(event.Duration.Seconds())

	case EventCacheHit:
		m.cache.WithLabelValues("hit").Inc()
	case EventCacheMiss:
		m.cache.WithLabelValues("miss").Inc()
	case EventCacheError:
		m.cache.WithLabelValues("error").Inc()

	case EventFallback:
		m.fallbacks.WithLabelValues(event.Cause).Inc()

	case EventBreakerTransition:
		m.transitions.WithLabelValues(event.Component, event.To).Inc()

	case EventHealthChanged:
		up := 0.0
		if event.Healthy {
			up = 1
		}
		m.componentUp.WithLabelValues(event.Component).Set(up)
	}
}
