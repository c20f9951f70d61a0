package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/veranemoloko/onc-archive/internal/domain"
	errpkg "github.com/veranemoloko/onc-archive/internal/errors"
	"github.com/veranemoloko/onc-archive/internal/validation"
)

// ListingClient is the part of the web service client used to list files.
type ListingClient interface {
	ServiceURL(service string) string
	DoRequest(ctx context.Context, endpoint string, params domain.Filters) (json.RawMessage, error)
	GetAllPages(ctx context.Context, endpoint string, params domain.Filters, key string) (json.RawMessage, error)
}

// ArchiveService lists files of the archivefiles service.
type ArchiveService struct {
	client ListingClient
	logger *slog.Logger
}

// NewArchiveService creates a new ArchiveService.
func NewArchiveService(client ListingClient, logger *slog.Logger) *ArchiveService {
	return &ArchiveService{client: client, logger: logger}
}

// ListByLocation lists files for a location code and device category code.
// The optional "extension" filter keeps only files with that extension.
func (s *ArchiveService) ListByLocation(ctx context.Context, filters domain.Filters, allPages bool) (*domain.FileListResult, error) {
	return s.list(ctx, filters, "getListByLocation", allPages)
}

// ListByDevice lists files for a device code, optionally limited by time range.
// The optional "extension" filter keeps only files with that extension.
func (s *ArchiveService) ListByDevice(ctx context.Context, filters domain.Filters, allPages bool) (*domain.FileListResult, error) {
	return s.list(ctx, filters, "getListByDevice", allPages)
}

func (s *ArchiveService) list(ctx context.Context, filters domain.Filters, method string, allPages bool) (*domain.FileListResult, error) {
	if err := validation.ValidateFilters(filters); err != nil {
		return nil, fmt.Errorf("%w: %w", errpkg.ErrInvalidSelector, err)
	}

	params := filters.Clone()
	extension := params["extension"]
	delete(params, "extension")
	params["method"] = method

	endpoint := s.client.ServiceURL("archivefiles")

	var (
		raw json.RawMessage
		err error
	)
	if allPages {
		raw, err = s.client.GetAllPages(ctx, endpoint, params, "files")
	} else {
		raw, err = s.client.DoRequest(ctx, endpoint, params)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	var result domain.FileListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%s: decode file list: %w", method, err)
	}

	filtered := FilterByExtension(&result, extension)
	s.logger.Debug("file list fetched",
		"method", method,
		"all_pages", allPages,
		"files", len(result.Files),
		"kept", len(filtered.Files),
	)
	return filtered, nil
}

// FilterByExtension returns a copy of result holding only the files whose
// name ends with "." + extension. The match is case-sensitive. An empty
// extension returns result unchanged.
func FilterByExtension(result *domain.FileListResult, extension string) *domain.FileListResult {
	if extension == "" {
		return result
	}

	suffix := "." + strings.TrimPrefix(extension, ".")
	out := *result
	out.Files = make([]domain.FileRecord, 0, len(result.Files))
	for _, f := range result.Files {
		if strings.HasSuffix(f.Filename, suffix) {
			out.Files = append(out.Files, f)
		}
	}
	return &out
}
