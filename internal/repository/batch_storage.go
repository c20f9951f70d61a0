package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veranemoloko/onc-archive/internal/domain"
	errpkg "github.com/veranemoloko/onc-archive/internal/errors"
)

// BatchStorage keeps batches in memory and mirrors them to a JSON state file
// so unfinished batches survive a restart.
type BatchStorage struct {
	mu      sync.RWMutex
	batches map[uuid.UUID]*domain.Batch
	file    string

	// serializes writers of the state file
	saveMu sync.Mutex
	logger *slog.Logger
}

// NewBatchStorage creates a new BatchStorage and loads batches from the file if it exists.
func NewBatchStorage(filePath string, logger *slog.Logger) (*BatchStorage, error) {
	repo := &BatchStorage{
		batches: make(map[uuid.UUID]*domain.Batch),
		file:    filepath.Clean(filePath),
		logger:  logger,
	}

	if err := repo.restore(); err != nil {
		return nil, fmt.Errorf("failed to load state from file: %w", err)
	}

	logger.Info("batch repository initialized", "file_path", repo.file, "batches_count", len(repo.batches))
	return repo, nil
}

func (r *BatchStorage) restore() error {
	data, err := os.ReadFile(r.file)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Info("state file does not exist, starting with empty state", "file_path", r.file)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	if len(data) == 0 {
		r.logger.Warn("state file is empty", "file_path", r.file)
		return nil
	}

	var batches []*domain.Batch
	if err := json.Unmarshal(data, &batches); err != nil {
		return fmt.Errorf("failed to unmarshal state file: %w", err)
	}

	for _, b := range batches {
		r.batches[b.ID] = b
	}
	return nil
}

func (r *BatchStorage) persist() error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.RLock()
	batches := make([]*domain.Batch, 0, len(r.batches))
	for _, b := range r.batches {
		batches = append(batches, b)
	}
	slices.SortFunc(batches, func(a, b *domain.Batch) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	data, err := json.MarshalIndent(batches, "", "  ")
	r.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal batches: %w", err)
	}

	tempFile := r.file + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, r.file); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	r.logger.Debug("state saved to file", "batches_count", len(batches), "file_path", r.file)
	return nil
}

// CreateBatch adds a new batch and persists it to the file.
func (r *BatchStorage) CreateBatch(ctx context.Context, batch *domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.batches[batch.ID] = batch.Clone()
	r.mu.Unlock()

	if err := r.persist(); err != nil {
		return fmt.Errorf("failed to save state after creating batch: %w", err)
	}

	r.logger.Debug("batch created and saved", "batch_id", batch.ID)
	return nil
}

// GetBatch retrieves a copy of the batch with the given ID.
func (r *BatchStorage) GetBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	batch, exists := r.batches[id]
	if !exists {
		return nil, errpkg.ErrBatchNotFound
	}
	return batch.Clone(), nil
}

// UpdateBatch replaces an existing batch and persists it to the file.
func (r *BatchStorage) UpdateBatch(ctx context.Context, batch *domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	if _, exists := r.batches[batch.ID]; !exists {
		r.mu.Unlock()
		return errpkg.ErrBatchNotFound
	}
	batch.UpdatedAt = time.Now()
	r.batches[batch.ID] = batch.Clone()
	r.mu.Unlock()

	if err := r.persist(); err != nil {
		return fmt.Errorf("failed to save state after updating batch: %w", err)
	}

	r.logger.Debug("batch updated and saved", "batch_id", batch.ID, "status", batch.Status)
	return nil
}

// GetBatchesByStatus returns copies of all batches with the given status,
// oldest first.
func (r *BatchStorage) GetBatchesByStatus(ctx context.Context, status domain.BatchStatus) ([]*domain.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	var filtered []*domain.Batch
	for _, b := range r.batches {
		if b.Status == status {
			filtered = append(filtered, b.Clone())
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(filtered, func(a, b *domain.Batch) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return filtered, nil
}
