package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/angeloszaimis/item-enricher/internal/correlation"
	"github.com/angeloszaimis/item-enricher/internal/record"
)

// TypeFatalDiagnostic marks errors nothing in the stack anticipated.
const TypeFatalDiagnostic = "FATAL_DIAGNOSTIC"

type errorResponse struct {
	Error         string    `json:"error"`
	Message       string    `json:"message"`
	Status        int       `json:"status"`
	Type          string    `json:"type,omitempty"`
	Path          string    `json:"path"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, record.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, record.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, record.ErrStoreUnavailable), errors.Is(err, record.ErrStoreTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	body := errorResponse{
		Error:     http.StatusText(status),
		Message:   err.Error(),
		Status:    status,
		Path:      r.URL.Path,
		Timestamp: time.Now().UTC(),
	}
	if status == http.StatusInternalServerError {
		body.Type = TypeFatalDiagnostic
	}
	if id, ok := correlation.FromContext(r.Context()); ok {
		body.CorrelationID = id
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
