package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/veranemoloko/onc-archive/internal/domain"
)

// DiscoveryClient is the part of the web service client behind the
// discovery and real-time routes.
type DiscoveryClient interface {
	GetLocations(ctx context.Context, filters domain.Filters) (json.RawMessage, error)
	GetLocationHierarchy(ctx context.Context, filters domain.Filters) (json.RawMessage, error)
	GetDeployments(ctx context.Context, filters domain.Filters) (json.RawMessage, error)
	GetDevices(ctx context.Context, filters domain.Filters) (json.RawMessage, error)
	GetDeviceCategories(ctx context.Context, filters domain.Filters) (json.RawMessage, error)
	GetProperties(ctx context.Context, filters domain.Filters) (json.RawMessage, error)
	GetDataProducts(ctx context.Context, filters domain.Filters) (json.RawMessage, error)

	GetDirectScalar(ctx context.Context, filters domain.Filters, allPages bool) ([]json.RawMessage, error)
	GetDirectByLocation(ctx context.Context, filters domain.Filters, allPages bool) ([]json.RawMessage, error)
	GetDirectByDevice(ctx context.Context, filters domain.Filters, allPages bool) ([]json.RawMessage, error)
	GetDirectRawByLocation(ctx context.Context, filters domain.Filters, allPages bool) ([]json.RawMessage, error)
	GetDirectRawByDevice(ctx context.Context, filters domain.Filters, allPages bool) ([]json.RawMessage, error)
}

type discoverFunc func(ctx context.Context, filters domain.Filters) (json.RawMessage, error)

type realTimeFunc func(ctx context.Context, filters domain.Filters, allPages bool) ([]json.RawMessage, error)

// DiscoveryHandler proxies discovery and real-time queries to the ONC services.
type DiscoveryHandler struct {
	discover map[string]discoverFunc
	client   DiscoveryClient
	logger   *slog.Logger
}

func NewDiscoveryHandler(client DiscoveryClient, logger *slog.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discover: map[string]discoverFunc{
			"locations":        client.GetLocations,
			"locationTree":     client.GetLocationHierarchy,
			"deployments":      client.GetDeployments,
			"devices":          client.GetDevices,
			"deviceCategories": client.GetDeviceCategories,
			"properties":       client.GetProperties,
			"dataProducts":     client.GetDataProducts,
		},
		client: client,
		logger: logger,
	}
}

// Discover handles GET /discovery/{service}.
func (h *DiscoveryHandler) Discover(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	discover, ok := h.discover[service]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown discovery service")
		return
	}

	filters, _, err := parseFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := discover(r.Context(), filters)
	if err != nil {
		h.fail(w, "discovery request failed", service, err)
		return
	}

	writeJSON(w, http.StatusOK, body)
}

// ScalarByLocation handles GET /realtime/scalardata/location.
func (h *DiscoveryHandler) ScalarByLocation(w http.ResponseWriter, r *http.Request) {
	h.realTime(w, r, h.client.GetDirectByLocation, "locationCode", "deviceCategoryCode")
}

// Scalar handles GET /realtime/scalar, the older name of ScalarByLocation.
func (h *DiscoveryHandler) Scalar(w http.ResponseWriter, r *http.Request) {
	h.realTime(w, r, h.client.GetDirectScalar, "locationCode", "deviceCategoryCode")
}

// ScalarByDevice handles GET /realtime/scalardata/device.
func (h *DiscoveryHandler) ScalarByDevice(w http.ResponseWriter, r *http.Request) {
	h.realTime(w, r, h.client.GetDirectByDevice, "deviceCode")
}

// RawByLocation handles GET /realtime/rawdata/location.
func (h *DiscoveryHandler) RawByLocation(w http.ResponseWriter, r *http.Request) {
	h.realTime(w, r, h.client.GetDirectRawByLocation, "locationCode", "deviceCategoryCode")
}

// RawByDevice handles GET /realtime/rawdata/device.
func (h *DiscoveryHandler) RawByDevice(w http.ResponseWriter, r *http.Request) {
	h.realTime(w, r, h.client.GetDirectRawByDevice, "deviceCode")
}

func (h *DiscoveryHandler) realTime(w http.ResponseWriter, r *http.Request, fetch realTimeFunc, required ...string) {
	filters, allPages, err := parseFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !filters.Has(required...) {
		writeError(w, http.StatusBadRequest, "missing required parameters")
		return
	}

	pages, err := fetch(r.Context(), filters, allPages)
	if err != nil {
		h.fail(w, "real-time request failed", r.URL.Path, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}

func (h *DiscoveryHandler) fail(w http.ResponseWriter, msg, target string, err error) {
	status := statusFor(err)
	h.logger.Warn(msg, "target", target, "error", err, "status", status)
	writeError(w, status, publicMessage(status, err))
}
