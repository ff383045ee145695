// Package config loads the service configuration from an optional YAML file
// and environment variables, applies defaults, and validates the result. It
// covers the HTTP server, logging, the record store, the cache, the
// enrichment dependency and its circuit breaker, health checks and metrics.
//
// Environment variables use the upper-cased key with dots replaced by
// underscores, e.g. DEPENDENCY_BASE_URL or CACHE_TTL.
package config
