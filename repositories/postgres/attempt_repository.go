package postgres

import (
	"context"
	"fmt"

	"github.com/upb/llm-cascade/models"
	"github.com/upb/llm-cascade/repositories"
	"go.uber.org/zap"
)

const attemptColumns = `id, cascade_id, request_id, provider, protocol, attempt_index,
		       outcome, status_code, latency_ms, error_message, timestamp`

// AttemptRepository implements the repositories.AttemptRepository interface
type AttemptRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(db *DB, logger *zap.Logger) repositories.AttemptRepository {
	return &AttemptRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new attempt record
func (r *AttemptRepository) Insert(ctx context.Context, attempt *models.CascadeAttempt) error {
	query := `
		INSERT INTO cascade_attempts (
			id, cascade_id, request_id, provider, protocol, attempt_index,
			outcome, status_code, latency_ms, error_message, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.CascadeID,
		attempt.RequestID,
		attempt.Provider,
		attempt.Protocol,
		attempt.AttemptIndex,
		attempt.Outcome,
		attempt.StatusCode,
		attempt.LatencyMs,
		attempt.ErrorMessage,
		attempt.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert cascade attempt: %w", err)
	}

	r.logger.Debug("cascade attempt inserted",
		zap.String("id", attempt.ID.String()),
		zap.String("cascade_id", attempt.CascadeID),
		zap.String("provider", attempt.Provider))
	return nil
}

// GetByCascadeID retrieves all attempts of one cascade run
func (r *AttemptRepository) GetByCascadeID(ctx context.Context, cascadeID string) ([]*models.CascadeAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM cascade_attempts
		WHERE cascade_id = $1
		ORDER BY timestamp ASC, attempt_index ASC
	`

	return r.queryAttempts(ctx, query, cascadeID)
}

// GetByRequestID retrieves all attempts made for one HTTP request
func (r *AttemptRepository) GetByRequestID(ctx context.Context, requestID string) ([]*models.CascadeAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM cascade_attempts
		WHERE request_id = $1
		ORDER BY timestamp ASC, attempt_index ASC
	`

	return r.queryAttempts(ctx, query, requestID)
}

// ListRecent retrieves the newest attempts, optionally for one provider
func (r *AttemptRepository) ListRecent(ctx context.Context, provider string, limit, offset int) ([]*models.CascadeAttempt, error) {
	if provider == "" {
		query := `
			SELECT ` + attemptColumns + `
			FROM cascade_attempts
			ORDER BY timestamp DESC
			LIMIT $1 OFFSET $2
		`
		return r.queryAttempts(ctx, query, limit, offset)
	}

	query := `
		SELECT ` + attemptColumns + `
		FROM cascade_attempts
		WHERE provider = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`
	return r.queryAttempts(ctx, query, provider, limit, offset)
}

// queryAttempts is a helper function to query multiple attempts
func (r *AttemptRepository) queryAttempts(ctx context.Context, query string, args ...interface{}) ([]*models.CascadeAttempt, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cascade attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.CascadeAttempt
	for rows.Next() {
		attempt := &models.CascadeAttempt{}
		var requestID *string
		err := rows.Scan(
			&attempt.ID,
			&attempt.CascadeID,
			&requestID,
			&attempt.Provider,
			&attempt.Protocol,
			&attempt.AttemptIndex,
			&attempt.Outcome,
			&attempt.StatusCode,
			&attempt.LatencyMs,
			&attempt.ErrorMessage,
			&attempt.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cascade attempt: %w", err)
		}
		if requestID != nil {
			attempt.RequestID = *requestID
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cascade attempts: %w", err)
	}

	return attempts, nil
}
