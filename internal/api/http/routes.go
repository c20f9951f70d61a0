package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new HTTP router with configured routes, middleware, and handlers.
// It sets up batch, file listing, discovery and real-time routes, health check, and Prometheus metrics endpoint.
func NewRouter(batchService BatchServiceI, archiveService ArchiveServiceI, discovery DiscoveryClient, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	batchHandler := NewBatchHandler(batchService, logger)
	filesHandler := NewFilesHandler(archiveService, logger)
	discoveryHandler := NewDiscoveryHandler(discovery, logger)

	r.Route("/batches", func(r chi.Router) {
		r.Post("/", batchHandler.CreateBatch)
		r.Get("/{batchID}", batchHandler.GetBatch)
	})

	r.Route("/files", func(r chi.Router) {
		r.Get("/location", filesHandler.ListByLocation)
		r.Get("/device", filesHandler.ListByDevice)
	})

	r.Get("/discovery/{service}", discoveryHandler.Discover)

	r.Route("/realtime", func(r chi.Router) {
		r.Get("/scalar", discoveryHandler.Scalar)
		r.Get("/scalardata/location", discoveryHandler.ScalarByLocation)
		r.Get("/scalardata/device", discoveryHandler.ScalarByDevice)
		r.Get("/rawdata/location", discoveryHandler.RawByLocation)
		r.Get("/rawdata/device", discoveryHandler.RawByDevice)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
