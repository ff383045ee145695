package main

import (
	"net/http"

	"github.com/angeloszaimis/item-enricher/internal/handler"
	"github.com/angeloszaimis/item-enricher/internal/metrics"
)

func setupRouter(basePath string, items *handler.ItemHandler, health http.Handler, collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+basePath+"/items", items.CreateItem)
	mux.HandleFunc("GET "+basePath+"/items", items.ListItems)
	mux.HandleFunc("GET "+basePath+"/items/{id}", items.GetItem)
	mux.HandleFunc("GET "+basePath+"/enrich/{id}", items.Enrich)

	mux.Handle("GET /health", health)
	mux.Handle("GET /actuator/health", health)
	mux.Handle("GET /metrics", collector.PrometheusHandler())
	mux.HandleFunc("GET /stats", collector.Handler())

	return mux
}
