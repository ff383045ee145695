package handler

import (
	"net/http"

	"github.com/angeloszaimis/item-enricher/internal/healthcheck"
)

type HealthReporter interface {
	Report() healthcheck.Report
}

// NewHealthHandler serves the last known health report: 200 when UP, 503 when
// DOWN.
func NewHealthHandler(reporter HealthReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := reporter.Report()

		status := http.StatusOK
		if report.Status == healthcheck.StatusDown {
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, status, report)
	}
}
