package record

import "errors"

var (
	ErrInvalidRecord = errors.New("invalid record")

	ErrNotFound         = errors.New("record not found")
	ErrStoreUnavailable = errors.New("record store unavailable")
	ErrStoreTimeout     = errors.New("record store timeout")

	ErrCircuitOpen                 = errors.New("circuit open")
	ErrDependencyTimeout           = errors.New("dependency timeout")
	ErrDependencyUnavailable       = errors.New("dependency unavailable")
	ErrDependencyMalformedResponse = errors.New("dependency malformed response")
)

// IsStoreError reports whether err belongs to the persistence layer.
func IsStoreError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrStoreTimeout)
}

// IsDependencyError reports whether err belongs to the dependency layer.
func IsDependencyError(err error) bool {
	return errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, ErrDependencyTimeout) ||
		errors.Is(err, ErrDependencyUnavailable) ||
		errors.Is(err, ErrDependencyMalformedResponse)
}
