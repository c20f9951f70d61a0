package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/veranemoloko/onc-archive/internal/domain"
	errpkg "github.com/veranemoloko/onc-archive/internal/errors"
	"github.com/veranemoloko/onc-archive/internal/onc"
	"github.com/veranemoloko/onc-archive/internal/validation"
)

// BatchServiceI defines the interface for batch-related business logic.
type BatchServiceI interface {
	CreateBatch(ctx context.Context, req domain.CreateBatchRequest) (*domain.Batch, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error)
}

// ArchiveServiceI lists archive files.
type ArchiveServiceI interface {
	ListByLocation(ctx context.Context, filters domain.Filters, allPages bool) (*domain.FileListResult, error)
	ListByDevice(ctx context.Context, filters domain.Filters, allPages bool) (*domain.FileListResult, error)
}

// BatchHandler handles HTTP requests for download batches.
type BatchHandler struct {
	batchService BatchServiceI
	validator    *validator.Validate
	logger       *slog.Logger
}

// NewBatchHandler creates a new BatchHandler with the provided service and logger.
func NewBatchHandler(batchService BatchServiceI, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		batchService: batchService,
		validator:    validation.Validator(),
		logger:       logger,
	}
}

// CreateBatch handles the HTTP POST /batches request to submit a new batch.
func (h *BatchHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("validation failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := h.batchService.CreateBatch(ctx, req)
	if err != nil {
		h.handleServiceError(w, "failed to create batch", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"batch_id": batch.ID,
	})
}

// GetBatch handles the HTTP GET /batches/{batchID} request.
func (h *BatchHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	batchID, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid batch ID")
		return
	}

	batch, err := h.batchService.GetBatch(ctx, batchID)
	if err != nil {
		h.handleServiceError(w, "failed to get batch", err)
		return
	}

	writeJSON(w, http.StatusOK, domain.BatchResponse{
		ID:        batch.ID,
		Status:    batch.Status,
		Report:    batch.Report,
		Error:     batch.Error,
		CreatedAt: batch.CreatedAt,
		UpdatedAt: batch.UpdatedAt,
	})
}

func (h *BatchHandler) handleServiceError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	} else {
		h.logger.Warn(msg, "error", err)
	}
	writeError(w, status, publicMessage(status, err))
}

// FilesHandler lists archive files matching the query parameters.
type FilesHandler struct {
	archiveService ArchiveServiceI
	logger         *slog.Logger
}

func NewFilesHandler(archiveService ArchiveServiceI, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{archiveService: archiveService, logger: logger}
}

// ListByLocation handles GET /files/location.
func (h *FilesHandler) ListByLocation(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.archiveService.ListByLocation, "locationCode", "deviceCategoryCode")
}

// ListByDevice handles GET /files/device.
func (h *FilesHandler) ListByDevice(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.archiveService.ListByDevice, "deviceCode")
}

type listFunc func(ctx context.Context, filters domain.Filters, allPages bool) (*domain.FileListResult, error)

func (h *FilesHandler) list(w http.ResponseWriter, r *http.Request, list listFunc, required ...string) {
	filters, allPages, err := parseFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !filters.Has(required...) {
		writeError(w, http.StatusBadRequest, "missing required parameters")
		return
	}

	result, err := list(r.Context(), filters, allPages)
	if err != nil {
		status := statusFor(err)
		h.logger.Warn("failed to list files", "error", err, "status", status)
		writeError(w, status, publicMessage(status, err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parseFilters turns the query string into service filters. dateFrom and
// dateTo are normalised to the UTC form the service expects.
func parseFilters(r *http.Request) (domain.Filters, bool, error) {
	query := r.URL.Query()

	allPages := false
	if v := query.Get("allPages"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, false, errors.New("allPages must be a boolean")
		}
		allPages = b
	}
	query.Del("allPages")

	filters := domain.Filters{}
	for k := range query {
		filters[k] = query.Get(k)
	}

	for _, k := range []string{"dateFrom", "dateTo"} {
		if v, ok := filters[k]; ok {
			utc, err := onc.FormatUTC(v)
			if err != nil {
				return nil, false, err
			}
			filters[k] = utc
		}
	}
	return filters, allPages, nil
}

// statusFor maps service errors to gateway status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errpkg.ErrInvalidSelector), errors.Is(err, errpkg.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, errpkg.ErrBatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, errpkg.ErrShuttingDown):
		return http.StatusServiceUnavailable
	}

	switch code := errpkg.StatusCode(err); {
	case code == http.StatusBadRequest, code == http.StatusNotFound:
		return code
	case code != 0:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func publicMessage(status int, err error) string {
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
