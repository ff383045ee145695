// Package record defines the data that flows through the service: the stored
// Record, the EnrichmentInfo returned by the enrichment dependency (or
// synthesized by the fallback path), and the EnrichedRecord pairing both.
//
// It also owns the error taxonomy shared by every layer. Persistence errors
// (ErrNotFound, ErrStoreUnavailable, ErrStoreTimeout) always reach the caller.
// Dependency errors (ErrCircuitOpen, ErrDependencyTimeout,
// ErrDependencyUnavailable, ErrDependencyMalformedResponse) never leave the
// enrichment orchestrator; they are absorbed by the fallback composer.
package record
