package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/upb/llm-cascade/services/providers"
)

var (
	// ErrAllProvidersFailed is matched by the aggregate cascade failure
	ErrAllProvidersFailed = errors.New("all providers failed")

	// ErrNoMessages is returned when the conversation is empty
	ErrNoMessages = errors.New("at least one message is required")

	// ErrInvalidMessages is returned when a message has an unknown role
	ErrInvalidMessages = errors.New("invalid messages")

	errEmptyContent = errors.New("provider returned empty content")
)

// Result is the first successful outcome of a cascade
type Result struct {
	// ID identifies this cascade run
	ID string

	// Content is the generated text
	Content string

	// Provider that produced the content
	Provider string

	// Attempts made against the winning provider
	Attempts int

	// Trace lists every attempt of the run in order, skips included
	Trace []Attempt
}

// Attempt is the outcome of one call (or skip) against one provider
type Attempt struct {
	CascadeID  string
	RequestID  string
	Provider   string
	Protocol   providers.ProtocolKind
	Index      int
	StatusCode int

	// Kind is empty on success
	Kind    providers.FailureKind
	Latency time.Duration
	Err     error
	At      time.Time
}

// Succeeded reports whether the attempt produced content
func (a Attempt) Succeeded() bool {
	return a.Kind == ""
}

// ProviderFailure summarizes why one provider did not produce a result
type ProviderFailure struct {
	Provider   string
	Kind       providers.FailureKind
	StatusCode int
	Attempts   int
	Err        error
}

// AllProvidersFailedError is the single aggregate failure of a cascade
type AllProvidersFailedError struct {
	CascadeID string
	Failures  []ProviderFailure

	// Cause is set when the cascade stopped early, e.g. on context cancellation
	Cause error
}

// Error implements the error interface
func (e *AllProvidersFailedError) Error() string {
	msg := "all AI providers failed, please check your API keys and network connection"
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Is matches ErrAllProvidersFailed
func (e *AllProvidersFailedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// Unwrap returns the early-stop cause, if any
func (e *AllProvidersFailedError) Unwrap() error {
	return e.Cause
}

// Summary renders one "provider: kind" entry per failure
func (e *AllProvidersFailedError) Summary() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		entry := fmt.Sprintf("%s: %s", f.Provider, f.Kind)
		if f.StatusCode != 0 {
			entry += fmt.Sprintf(" (%d)", f.StatusCode)
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, ", ")
}

// AttemptRecorder observes attempts. Implementations must not block.
type AttemptRecorder interface {
	RecordAttempt(attempt Attempt)
}

// MultiRecorder fans attempts out to several recorders
type MultiRecorder []AttemptRecorder

// RecordAttempt implements AttemptRecorder
func (m MultiRecorder) RecordAttempt(attempt Attempt) {
	for _, r := range m {
		if r != nil {
			r.RecordAttempt(attempt)
		}
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(Attempt) {}

type requestIDKey struct{}

// ContextWithRequestID tags attempts of cascades run under ctx with a caller request id
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the id set by ContextWithRequestID, or ""
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
