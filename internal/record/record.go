package record

import "fmt"

// Status tags where an EnrichmentInfo came from.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusError       Status = "error"
	StatusUnavailable Status = "unavailable"
)

// Degraded reports whether the status was produced by the fallback path.
func (s Status) Degraded() bool {
	return s == StatusError || s == StatusUnavailable
}

// Record is the primary stored entity. ID is assigned by the store on
// creation and never changes afterwards.
type Record struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Validate checks the fields a caller controls.
func (r Record) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidRecord)
	}
	return nil
}

// EnrichmentInfo is either fully populated or absent.
type EnrichmentInfo struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// EnrichedRecord is built per request and never persisted.
type EnrichedRecord struct {
	Item         Record         `json:"item"`
	ExternalInfo EnrichmentInfo `json:"externalInfo"`
}
