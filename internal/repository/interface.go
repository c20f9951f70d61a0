package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/veranemoloko/onc-archive/internal/domain"
)

// BatchRepo defines the interface for batch storage operations.
type BatchRepo interface {
	CreateBatch(ctx context.Context, batch *domain.Batch) error
	GetBatch(ctx context.Context, id uuid.UUID) (*domain.Batch, error)
	UpdateBatch(ctx context.Context, batch *domain.Batch) error
	GetBatchesByStatus(ctx context.Context, status domain.BatchStatus) ([]*domain.Batch, error)
}
