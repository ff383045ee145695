//go:build ignore

// fakedependency is a stand-in for the external enrichment service with
// injectable faults, used for manual chaos runs against the item service.
//
// Usage:
//
//	go run fakedependency.go -port 8081
//
// Faults can be changed at runtime:
//
//	curl -X POST 'localhost:8081/admin/faults?latency=3s&error_rate=0.5&malformed_rate=0'
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type faults struct {
	mutex         sync.RWMutex
	latency       time.Duration
	errorRate     float64
	malformedRate float64
}

func (f *faults) snapshot() (time.Duration, float64, float64) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.latency, f.errorRate, f.malformedRate
}

func (f *faults) update(r *http.Request) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	q := r.URL.Query()
	if v := q.Get("latency"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("latency: %w", err)
		}
		f.latency = d
	}
	if v := q.Get("error_rate"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("error_rate: %w", err)
		}
		f.errorRate = rate
	}
	if v := q.Get("malformed_rate"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("malformed_rate: %w", err)
		}
		f.malformedRate = rate
	}
	return nil
}

type info struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	latency := flag.Duration("latency", 0, "delay added to every response")
	errorRate := flag.Float64("error-rate", 0, "fraction of requests answered with 500")
	malformedRate := flag.Float64("malformed-rate", 0, "fraction of requests answered with an unparsable body")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	f := &faults{latency: *latency, errorRate: *errorRate, malformedRate: *malformedRate}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /external/info/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		delay, errRate, malformed := f.snapshot()
		log.Info("request",
			slog.Int64("id", id),
			slog.String("correlation_id", r.Header.Get("X-Correlation-Id")),
			slog.Duration("latency", delay))

		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}

		switch roll := rand.Float64(); {
		case roll < errRate:
			http.Error(w, "injected failure", http.StatusInternalServerError)
			return
		case roll < errRate+malformed:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id": "not-a-number"`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info{
			ID:          id,
			Description: "External data " + uuid.NewString(),
			Status:      "success",
		})
	})

	mux.HandleFunc("POST /admin/faults", func(w http.ResponseWriter, r *http.Request) {
		if err := f.update(r); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		delay, errRate, malformed := f.snapshot()
		log.Info("faults updated",
			slog.Duration("latency", delay),
			slog.Float64("error_rate", errRate),
			slog.Float64("malformed_rate", malformed))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Info("starting fake dependency", slog.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	}
}
