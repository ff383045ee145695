// Package dependency is the HTTP client for the external enrichment service.
//
// A Fetch issues GET {base}/external/info/{id}, forwards the request's
// correlation identifier and decodes {id, description, status}. The call is
// bounded by a connect timeout on the dialer and a total timeout on the
// client. Failures are classified into record.ErrDependencyTimeout,
// record.ErrDependencyUnavailable and record.ErrDependencyMalformedResponse.
// The client never retries; callers wrap it in a circuit breaker.
package dependency
