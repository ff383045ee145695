package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type EventType string

const (
	EventRequestCompleted  EventType = "request_completed"
	EventCacheHit          EventType = "cache_hit"
	EventCacheMiss         EventType = "cache_miss"
	EventCacheError        EventType = "cache_error"
	EventFallback          EventType = "fallback"
	EventBreakerTransition EventType = "breaker_transition"
	EventHealthChanged     EventType = "health_changed"
)

// MetricEvent carries the fields relevant to its Type; the rest stay zero.
type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Route      string
	Duration   time.Duration
	StatusCode int
	Component  string
	Cause      string
	From       string
	To         string
	Healthy    bool
}

type Collector struct {
	eventCh    chan MetricEvent
	metrics    *Metrics
	prometheus *promMetrics
	dropped    atomic.Int64
	logger     *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Collector{
		eventCh:    make(chan MetricEvent, bufferSize),
		metrics:    NewMetrics(),
		prometheus: newPromMetrics(),
		logger:     logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues event without blocking. A nil Collector discards it.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
		c.prometheus.dropped.Inc()
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	c.prometheus.observe(event)

	switch event.Type {
	case EventRequestCompleted:
		c.metrics.RecordRequest(event.Route, event.Duration, event.StatusCode)

	case EventCacheHit, EventCacheMiss, EventCacheError:
		c.metrics.RecordCache(event.Type)

	case EventFallback:
		c.metrics.RecordFallback(event.Cause)

	case EventBreakerTransition:
		c.metrics.RecordTransition(event.Component, event.To)

	case EventHealthChanged:
		c.metrics.UpdateHealthStatus(event.Component, event.Healthy)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	snap := c.metrics.Snapshot()
	snap.DroppedEvents = c.dropped.Load()
	return snap
}

// PrometheusHandler serves the collector's registry in exposition format.
func (c *Collector) PrometheusHandler() http.Handler {
	return promhttp.HandlerFor(c.prometheus.registry, promhttp.HandlerOpts{})
}
