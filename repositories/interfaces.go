package repositories

import (
	"context"

	"github.com/upb/llm-cascade/models"
)

// AttemptRepository handles cascade attempt data operations
type AttemptRepository interface {
	// Insert inserts a new attempt record
	Insert(ctx context.Context, attempt *models.CascadeAttempt) error

	// GetByCascadeID retrieves all attempts of one cascade run in the order they were made
	GetByCascadeID(ctx context.Context, cascadeID string) ([]*models.CascadeAttempt, error)

	// GetByRequestID retrieves all attempts made while serving one HTTP request
	GetByRequestID(ctx context.Context, requestID string) ([]*models.CascadeAttempt, error)

	// ListRecent retrieves the newest attempts with pagination, optionally filtered by provider
	ListRecent(ctx context.Context, provider string, limit, offset int) ([]*models.CascadeAttempt, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Attempts AttemptRepository
}
