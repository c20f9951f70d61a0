package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreateBatchRequest represents the request body for creating a new Batch.
type CreateBatchRequest struct {
	Selector    Selector `json:"selector"`
	Overwrite   bool     `json:"overwrite"`
	AllPages    bool     `json:"all_pages"`
	Concurrency int      `json:"concurrency" validate:"gte=0,lte=32"`
}

// BatchResponse represents the response returned for a Batch.
type BatchResponse struct {
	ID        uuid.UUID    `json:"batch_id"`
	Status    BatchStatus  `json:"status"`
	Report    *BatchReport `json:"report,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
