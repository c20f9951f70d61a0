package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/veranemoloko/onc-archive/internal/config"
	"github.com/veranemoloko/onc-archive/internal/domain"
	errpkg "github.com/veranemoloko/onc-archive/internal/errors"
	"github.com/veranemoloko/onc-archive/internal/progress"
	"github.com/veranemoloko/onc-archive/internal/worker"
)

// Fetcher downloads single archive files.
type Fetcher interface {
	Fetch(ctx context.Context, req domain.DownloadRequest, overwrite bool) domain.DownloadOutcome
	Exists(req domain.DownloadRequest) bool
	Skipped(req domain.DownloadRequest) domain.DownloadOutcome
	OutPath() string
}

// Lister resolves filters into archive file lists.
type Lister interface {
	ListByLocation(ctx context.Context, filters domain.Filters, allPages bool) (*domain.FileListResult, error)
	ListByDevice(ctx context.Context, filters domain.Filters, allPages bool) (*domain.FileListResult, error)
}

// DownloadService downloads batches of archive files with a bounded number
// of concurrent workers.
type DownloadService struct {
	lister      Lister
	fetcher     Fetcher
	reporter    *progress.Reporter
	concurrency int
	logger      *slog.Logger
}

// NewDownloadService creates a DownloadService. reporter may be nil.
func NewDownloadService(lister Lister, fetcher Fetcher, reporter *progress.Reporter, cfg *config.Config, logger *slog.Logger) *DownloadService {
	concurrency := cfg.DownloadThreads
	if concurrency <= 0 {
		concurrency = 2
	}
	return &DownloadService{
		lister:      lister,
		fetcher:     fetcher,
		reporter:    reporter,
		concurrency: concurrency,
		logger:      logger,
	}
}

// GetFile downloads a single file. An empty outPath uses the default
// output directory.
func (s *DownloadService) GetFile(ctx context.Context, filename string, overwrite bool, outPath string) domain.DownloadOutcome {
	return s.fetcher.Fetch(ctx, domain.DownloadRequest{Filename: filename, OutPath: outPath}, overwrite)
}

// GetDirectFiles resolves the selector, fetching every page of the file
// list when allPages is set, and downloads the files. The returnOptions
// filter is dropped so the service answers with plain filenames.
func (s *DownloadService) GetDirectFiles(ctx context.Context, sel domain.Selector, overwrite, allPages bool, concurrency int) (*domain.BatchReport, error) {
	if sel.Filters != nil {
		sel.Filters = sel.Filters.Clone()
		delete(sel.Filters, "returnOptions")
	}

	reqs, err := s.Resolve(ctx, sel, allPages)
	if err != nil {
		return nil, err
	}

	report, err := s.download(ctx, reqs, overwrite, concurrency)

	s.logger.Info("download batch finished",
		"directory", s.fetcher.OutPath(),
		"files", report.SuccessCount,
		"skipped", report.Skipped(),
		"failed", report.Failed(),
		"size", humanize.Bytes(uint64(report.TotalSize)),
		"time", progress.FormatDuration(report.TotalTime),
		"speed", progress.FormatSpeed(report.Speed()),
	)
	return report, err
}

// DownloadBatch resolves the selector from the first page of any file list
// and downloads the files. Only selector errors are returned; per-file
// failures are reported as outcomes with status error.
func (s *DownloadService) DownloadBatch(ctx context.Context, sel domain.Selector, overwrite bool, concurrency int) (*domain.BatchReport, error) {
	reqs, err := s.Resolve(ctx, sel, false)
	if err != nil {
		return nil, err
	}
	return s.download(ctx, reqs, overwrite, concurrency)
}

// Resolve turns a selector into the ordered list of files to download.
func (s *DownloadService) Resolve(ctx context.Context, sel domain.Selector, allPages bool) ([]domain.DownloadRequest, error) {
	kind := sel.Kind()

	switch kind {
	case domain.SelectorFiles:
		return append([]domain.DownloadRequest(nil), sel.Files...), nil

	case domain.SelectorLocation, domain.SelectorDevice:
		list := s.lister.ListByDevice
		if kind == domain.SelectorLocation {
			list = s.lister.ListByLocation
		}
		result, err := list(ctx, sel.Filters, allPages)
		if err != nil {
			return nil, fmt.Errorf("resolve %s selector: %w", kind, err)
		}
		return result.Requests(), nil

	case domain.SelectorTable:
		reqs, err := sel.Table.Requests()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errpkg.ErrInvalidSelector, err)
		}
		return reqs, nil

	default:
		return nil, fmt.Errorf("%w: need a file list, a table, locationCode and deviceCategoryCode, or deviceCode",
			errpkg.ErrInvalidSelector)
	}
}

func (s *DownloadService) download(ctx context.Context, reqs []domain.DownloadRequest, overwrite bool, concurrency int) (*domain.BatchReport, error) {
	if concurrency <= 0 {
		concurrency = s.concurrency
	}

	report := domain.NewBatchReport(len(reqs))

	pending := reqs
	if !overwrite {
		var existing []domain.DownloadRequest
		existing, pending = s.partition(reqs)
		for _, req := range existing {
			report.Outcomes = append(report.Outcomes, s.fetcher.Skipped(req))
		}
	}

	if len(pending) == 0 {
		return report, nil
	}

	s.logger.Info("download batch started",
		"files", len(reqs),
		"pending", len(pending),
		"skipped", len(reqs)-len(pending),
		"workers", concurrency,
	)

	acc := &accumulator{report: report}
	pool := worker.NewPool[domain.DownloadRequest](concurrency, s.logger)
	pool.SetPanicHandler(func(req domain.DownloadRequest, recovered any) {
		acc.add(domain.DownloadOutcome{
			Filename: req.Filename,
			Status:   domain.OutcomeError,
			Error:    fmt.Sprintf("download panicked: %v", recovered),
		})
	})

	observeCtx, stopObserving := context.WithCancel(ctx)
	defer stopObserving()

	var observer sync.WaitGroup
	if s.reporter != nil {
		observer.Add(1)
		go func() {
			defer observer.Done()
			s.reporter.Observe(observeCtx, pool, len(pending), func(i int) string {
				return pending[i].Filename
			})
		}()
	}

	start := time.Now()
	err := pool.Run(ctx, pending, func(ctx context.Context, req domain.DownloadRequest) {
		acc.add(s.fetcher.Fetch(ctx, req, overwrite))
	})
	report.TotalTime = math.Round(time.Since(start).Seconds()*1000) / 1000

	observer.Wait()

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("download batch interrupted",
				"done", len(report.Outcomes),
				"files", len(reqs),
			)
		}
		return report, fmt.Errorf("download batch: %w", err)
	}
	return report, nil
}

// partition splits reqs into files already on disk and files to fetch,
// keeping the input order in both.
func (s *DownloadService) partition(reqs []domain.DownloadRequest) (existing, pending []domain.DownloadRequest) {
	pending = make([]domain.DownloadRequest, 0, len(reqs))
	for _, req := range reqs {
		if s.fetcher.Exists(req) {
			existing = append(existing, req)
		} else {
			pending = append(pending, req)
		}
	}
	return existing, pending
}

// accumulator folds outcomes into a report under one lock.
type accumulator struct {
	mu     sync.Mutex
	report *domain.BatchReport
}

func (a *accumulator) add(o domain.DownloadOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.report.Outcomes = append(a.report.Outcomes, o)
	if o.Status == domain.OutcomeCompleted {
		a.report.TotalSize += o.SizeBytes
		a.report.SuccessCount++
	}
}
