package models

import (
	"time"

	"github.com/google/uuid"
)

// OutcomeSuccess marks an attempt that produced content. Failed attempts
// carry their failure kind (retryable, client, parse, ...) as the outcome.
const OutcomeSuccess = "success"

// CascadeAttempt is one provider call (or skip) made while serving a chat request
type CascadeAttempt struct {
	ID           uuid.UUID `json:"id" db:"id"`
	CascadeID    string    `json:"cascade_id" db:"cascade_id"`
	RequestID    string    `json:"request_id,omitempty" db:"request_id"`
	Provider     string    `json:"provider" db:"provider"`
	Protocol     string    `json:"protocol" db:"protocol"`
	AttemptIndex int       `json:"attempt_index" db:"attempt_index"`
	Outcome      string    `json:"outcome" db:"outcome"`
	StatusCode   *int      `json:"status_code,omitempty" db:"status_code"`
	LatencyMs    int       `json:"latency_ms" db:"latency_ms"`
	ErrorMessage *string   `json:"error_message,omitempty" db:"error_message"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the CascadeAttempt model
func (CascadeAttempt) TableName() string {
	return "cascade_attempts"
}

// NewCascadeAttempt creates a new CascadeAttempt instance
func NewCascadeAttempt(cascadeID, provider, protocol string, attemptIndex int) *CascadeAttempt {
	return &CascadeAttempt{
		ID:           uuid.New(),
		CascadeID:    cascadeID,
		Provider:     provider,
		Protocol:     protocol,
		AttemptIndex: attemptIndex,
		Outcome:      OutcomeSuccess,
		Timestamp:    time.Now(),
	}
}

// Succeeded reports whether the attempt produced content
func (a *CascadeAttempt) Succeeded() bool {
	return a.Outcome == OutcomeSuccess
}

// WithRequest sets the HTTP request id that triggered the cascade
func (a *CascadeAttempt) WithRequest(requestID string) *CascadeAttempt {
	a.RequestID = requestID
	return a
}

// WithStatus sets the HTTP status code. Zero means no response and is stored as NULL.
func (a *CascadeAttempt) WithStatus(statusCode int) *CascadeAttempt {
	if statusCode == 0 {
		a.StatusCode = nil
		return a
	}
	a.StatusCode = &statusCode
	return a
}

// WithLatency sets the round-trip time
func (a *CascadeAttempt) WithLatency(latency time.Duration) *CascadeAttempt {
	a.LatencyMs = int(latency.Milliseconds())
	return a
}

// WithTimestamp overrides the creation time
func (a *CascadeAttempt) WithTimestamp(ts time.Time) *CascadeAttempt {
	if !ts.IsZero() {
		a.Timestamp = ts
	}
	return a
}

// WithFailure sets the outcome kind and error message
func (a *CascadeAttempt) WithFailure(kind, errorMessage string) *CascadeAttempt {
	a.Outcome = kind
	if errorMessage != "" {
		a.ErrorMessage = &errorMessage
	}
	return a
}
