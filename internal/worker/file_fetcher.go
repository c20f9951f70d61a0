package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/veranemoloko/onc-archive/internal/domain"
	errpkg "github.com/veranemoloko/onc-archive/internal/errors"
	"github.com/veranemoloko/onc-archive/internal/metrics"
	"github.com/veranemoloko/onc-archive/internal/onc"
	"github.com/veranemoloko/onc-archive/internal/storage"
	"github.com/veranemoloko/onc-archive/internal/validation"
)

const archiveService = "archivefiles"

// ArchiveClient is the part of the web service client the fetcher needs.
type ArchiveClient interface {
	ServiceURL(service string) string
	PublicURL(endpoint string, params domain.Filters) string
	Open(ctx context.Context, endpoint string, params domain.Filters) (*onc.Stream, error)
}

// FileFetcher downloads single archive files and stores them in FileStorage.
type FileFetcher struct {
	client      ArchiveClient
	fileStorage *storage.FileStorage
	outPath     string
	logger      *slog.Logger
}

// NewFileFetcher creates a FileFetcher. outPath is the directory used for
// requests that do not name their own.
func NewFileFetcher(client ArchiveClient, fileStorage *storage.FileStorage, outPath string, logger *slog.Logger) *FileFetcher {
	return &FileFetcher{
		client:      client,
		fileStorage: fileStorage,
		outPath:     outPath,
		logger:      logger,
	}
}

// OutPath returns the default output directory.
func (f *FileFetcher) OutPath() string {
	return f.outPath
}

// Target returns where req is stored, relative to the storage root.
func (f *FileFetcher) Target(req domain.DownloadRequest) string {
	dir := req.OutPath
	if dir == "" {
		dir = f.outPath
	}
	return filepath.Join(dir, req.Filename)
}

// Exists reports whether the target of req is already on disk. A malformed
// request never exists, so it reaches Fetch and is reported there.
func (f *FileFetcher) Exists(req domain.DownloadRequest) bool {
	if validation.ValidateRequest(req) != nil {
		return false
	}
	return f.fileStorage.Exists(f.Target(req))
}

// SourceURL returns the download URL of filename, without the token.
func (f *FileFetcher) SourceURL(filename string) string {
	return f.client.PublicURL(f.client.ServiceURL(archiveService), getFileParams(filename))
}

// Skipped builds the outcome of a request whose file is already present.
func (f *FileFetcher) Skipped(req domain.DownloadRequest) domain.DownloadOutcome {
	metrics.DownloadsSkipped.Inc()
	f.logger.Debug("skipping file, already exists", "filename", req.Filename, "path", f.Target(req))

	return domain.DownloadOutcome{
		Filename: req.Filename,
		Status:   domain.OutcomeSkipped,
		URL:      f.SourceURL(req.Filename),
	}
}

// Fetch downloads one archive file and writes it to its target path.
// It never returns an error: every failure is reported as an outcome with
// status error. An existing file is skipped unless overwrite is set.
func (f *FileFetcher) Fetch(ctx context.Context, req domain.DownloadRequest, overwrite bool) domain.DownloadOutcome {
	outcome := domain.DownloadOutcome{
		Filename: req.Filename,
		URL:      f.SourceURL(req.Filename),
	}

	if err := validation.ValidateRequest(req); err != nil {
		return f.fail(outcome, fmt.Errorf("%w: %w", errpkg.ErrConfiguration, err))
	}

	target := f.Target(req)
	if !overwrite && f.fileStorage.Exists(target) {
		return f.Skipped(req)
	}

	metrics.DownloadsTotal.Inc()

	start := time.Now()
	stream, err := f.client.Open(ctx, f.client.ServiceURL(archiveService), getFileParams(req.Filename))
	if err != nil {
		outcome.DownloadTime = roundSeconds(time.Since(start))
		return f.fail(outcome, err)
	}
	defer stream.Body.Close()

	// stream the body to disk
	n, err := f.fileStorage.CopyFile(stream.Body, target)
	elapsed := time.Since(start)
	outcome.DownloadTime = roundSeconds(elapsed)

	if err != nil {
		return f.fail(outcome, fmt.Errorf("%w: %w", errpkg.ErrStorage, err))
	}

	outcome.Status = domain.OutcomeCompleted
	outcome.SizeBytes = n

	metrics.DownloadsSuccess.Inc()
	metrics.DownloadDuration.Observe(elapsed.Seconds())
	metrics.DownloadBytes.Add(float64(outcome.SizeBytes))

	f.logger.Debug("file downloaded successfully",
		"filename", req.Filename,
		"path", target,
		"bytes", outcome.SizeBytes,
		"duration", elapsed,
	)
	return outcome
}

func (f *FileFetcher) fail(outcome domain.DownloadOutcome, err error) domain.DownloadOutcome {
	outcome.Status = domain.OutcomeError
	outcome.SizeBytes = 0
	outcome.Error = err.Error()

	metrics.DownloadsFailed.Inc()
	f.logger.Error("download failed",
		"filename", outcome.Filename,
		"status", errpkg.StatusCode(err),
		"error", err,
	)
	return outcome
}

func getFileParams(filename string) domain.Filters {
	return domain.Filters{
		"method":   "getFile",
		"filename": filename,
	}
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
