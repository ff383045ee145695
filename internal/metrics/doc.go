// Package metrics collects service metrics through a channel-fed event
// pipeline.
//
// Components emit events without blocking:
//   - request completions per route, with latency and status code
//   - cache hits, misses and backend errors
//   - fallbacks, labelled by failure category
//   - circuit breaker state transitions
//   - component health changes
//
// A dedicated goroutine folds events into an in-memory Metrics store, served
// as JSON by Handler, and into a private Prometheus registry, served by
// PrometheusHandler. When the buffer is full events are dropped and counted
// rather than stalling the request path.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventRequestCompleted,
//		Route:      "GET /api/items/{id}",
//		Duration:   12 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	snapshot := collector.Snapshot()
package metrics
