package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veranemoloko/onc-archive/internal/domain"
	errpkg "github.com/veranemoloko/onc-archive/internal/errors"
	"github.com/veranemoloko/onc-archive/internal/metrics"
	"github.com/veranemoloko/onc-archive/internal/repository"
)

// BatchDownloader runs one batch to completion.
type BatchDownloader interface {
	GetDirectFiles(ctx context.Context, sel domain.Selector, overwrite, allPages bool, concurrency int) (*domain.BatchReport, error)
}

// BatchService accepts batches, runs them in the background and keeps their
// state in a repository.
type BatchService struct {
	repo       repository.BatchRepo
	downloader BatchDownloader
	logger     *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func NewBatchService(repo repository.BatchRepo, downloader BatchDownloader, logger *slog.Logger) *BatchService {
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchService{
		repo:       repo,
		downloader: downloader,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// CreateBatch stores a pending batch and starts processing it.
func (s *BatchService) CreateBatch(ctx context.Context, req domain.CreateBatchRequest) (*domain.Batch, error) {
	if req.Selector.Kind() == domain.SelectorInvalid {
		return nil, fmt.Errorf("%w: need a file list, a table, locationCode and deviceCategoryCode, or deviceCode",
			errpkg.ErrInvalidSelector)
	}

	now := time.Now()
	batch := &domain.Batch{
		ID:          uuid.New(),
		Status:      domain.BatchStatusPending,
		Selector:    req.Selector,
		Overwrite:   req.Overwrite,
		AllPages:    req.AllPages,
		Concurrency: req.Concurrency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errpkg.ErrShuttingDown
	}

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create batch: %w", err)
	}

	metrics.BatchesCreated.Inc()
	s.logger.Info("batch created",
		"batch_id", batch.ID,
		"selector", batch.Selector.Kind().String(),
	)

	// the worker owns its own copy; the caller's batch stays untouched
	s.start(batch.Clone())
	return batch, nil
}

// GetBatch returns the current state of a batch.
func (s *BatchService) GetBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	return s.repo.GetBatch(ctx, id)
}

// RecoverPendingBatches restarts batches left pending or in progress by a
// previous run.
func (s *BatchService) RecoverPendingBatches(ctx context.Context) error {
	var unfinished []*domain.Batch
	for _, status := range []domain.BatchStatus{domain.BatchStatusInProgress, domain.BatchStatusPending} {
		batches, err := s.repo.GetBatchesByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("failed to list %s batches: %w", status, err)
		}
		unfinished = append(unfinished, batches...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errpkg.ErrShuttingDown
	}

	for _, batch := range unfinished {
		s.logger.Info("recovering batch", "batch_id", batch.ID, "status", batch.Status)
		s.start(batch)
	}
	return nil
}

// start must be called with s.mu held.
func (s *BatchService) start(batch *domain.Batch) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processBatch(s.ctx, batch)
	}()
}

func (s *BatchService) processBatch(ctx context.Context, batch *domain.Batch) {
	log := s.logger.With("batch_id", batch.ID)
	log.Info("start processing batch", "selector", batch.Selector.Kind().String())

	batch.Status = domain.BatchStatusInProgress
	if err := s.repo.UpdateBatch(ctx, batch); err != nil {
		log.Error("failed to mark batch in progress", "error", err)
		return
	}

	report, err := s.downloader.GetDirectFiles(ctx, batch.Selector, batch.Overwrite, batch.AllPages, batch.Concurrency)
	batch.Report = report

	if err != nil && ctx.Err() != nil {
		// stays in progress so the next start picks it up again
		log.Warn("batch interrupted by shutdown")
		return
	}

	if err != nil {
		batch.Status = domain.BatchStatusFailed
		batch.Error = err.Error()
		metrics.BatchesFailed.Inc()
		log.Error("batch processing failed", "error", err)
	} else {
		batch.Status = domain.BatchStatusCompleted
		batch.Error = ""
		metrics.BatchesCompleted.Inc()
		log.Info("batch completed",
			"files", report.SuccessCount,
			"skipped", report.Skipped(),
			"failed", report.Failed(),
			"total", len(report.Outcomes),
		)
	}

	// the service context may be gone by now; the final state is still saved
	if err := s.repo.UpdateBatch(context.WithoutCancel(ctx), batch); err != nil {
		log.Error("failed to save batch result", "error", err, "status", batch.Status)
	}
}

// Shutdown stops accepting batches, cancels running downloads and waits for
// the workers to return.
func (s *BatchService) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down batch service")

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("batch service shutdown completed")
		return nil
	case <-ctx.Done():
		s.logger.Warn("batch service shutdown timed out")
		return ctx.Err()
	}
}
