// Package fallback builds the degraded EnrichmentInfo returned when the
// enrichment dependency cannot answer.
package fallback

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/angeloszaimis/item-enricher/internal/record"
)

// Marker appears in every fallback description.
const Marker = "Fallback"

const defaultMessage = "Service Unavailable"

const (
	CategoryCircuitOpen = "circuit open"
	CategoryTimeout     = "timeout"
	CategoryUpstream    = "upstream error"
	CategoryMalformed   = "malformed response"
	CategoryConnection  = "connection failure"
	CategoryUnknown     = "unknown failure"
)

// statusCoder is implemented by errors that carry the HTTP status of a live
// response.
type statusCoder interface {
	StatusCode() int
}

// Composer is stateless and safe for concurrent use.
type Composer struct {
	message string
}

func New(message string) *Composer {
	if message == "" {
		message = defaultMessage
	}
	return &Composer{message: message}
}

// Compose never fails. A malformed or 5xx live response yields status
// "error", every other cause yields "unavailable".
func (c *Composer) Compose(id int64, cause error) record.EnrichmentInfo {
	category := Category(cause)

	status := record.StatusUnavailable
	if category == CategoryMalformed || category == CategoryUpstream {
		status = record.StatusError
	}

	return record.EnrichmentInfo{
		ID:          id,
		Description: fmt.Sprintf("%s (%s): %s", c.message, Marker, category),
		Status:      status,
	}
}

// Category names the failure kind of cause.
func Category(cause error) string {
	var coded statusCoder

	switch {
	case errors.Is(cause, record.ErrCircuitOpen):
		return CategoryCircuitOpen
	case errors.Is(cause, record.ErrDependencyTimeout):
		return CategoryTimeout
	case errors.Is(cause, record.ErrDependencyMalformedResponse):
		return CategoryMalformed
	case errors.As(cause, &coded) && coded.StatusCode() >= http.StatusInternalServerError:
		return CategoryUpstream
	case errors.Is(cause, record.ErrDependencyUnavailable):
		return CategoryConnection
	default:
		return CategoryUnknown
	}
}
