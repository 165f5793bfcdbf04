package providers

import (
	"errors"
	"fmt"
	"net/http"
)

// FailureKind classifies why an attempt against a provider did not produce content
type FailureKind string

const (
	// FailureMissingCredential means the provider was skipped
	FailureMissingCredential FailureKind = "missing_credential"

	// FailureConfiguration is raised before any network call (e.g. malformed composite credential)
	FailureConfiguration FailureKind = "configuration"

	// FailureClient is an HTTP 4xx other than 429; never retried
	FailureClient FailureKind = "client"

	// FailureRetryable is HTTP 429, 5xx or a transport failure
	FailureRetryable FailureKind = "retryable"

	// FailureParse is a 2xx response whose JSON shape is not recognized
	FailureParse FailureKind = "parse"

	// FailureEmpty is a well-formed response with no content
	FailureEmpty FailureKind = "empty"
)

// ProviderError represents a failed attempt against one provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Kind is the failure classification
	Kind FailureKind

	// StatusCode is the HTTP status code, 0 when no response was received
	StatusCode int

	// Body is the raw error body returned by the provider
	Body string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider string, kind FailureKind, statusCode int, body string, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Kind:       kind,
		StatusCode: statusCode,
		Body:       body,
		Cause:      cause,
	}
}

// NewConfigurationError reports a provider setup problem detected before I/O
func NewConfigurationError(provider string, cause error) *ProviderError {
	return NewProviderError(provider, FailureConfiguration, 0, "", cause)
}

// NewParseError reports an unrecognized response shape
func NewParseError(provider string, cause error) *ProviderError {
	return NewProviderError(provider, FailureParse, 0, "", cause)
}

// NewStatusError classifies a non-success HTTP status
func NewStatusError(provider string, statusCode int, body string) *ProviderError {
	return NewProviderError(provider, ClassifyStatus(statusCode), statusCode, body,
		fmt.Errorf("API call failed with status %d", statusCode))
}

// ClassifyStatus maps an HTTP status to a failure kind.
// Status 0 stands for a transport failure with no response.
func ClassifyStatus(statusCode int) FailureKind {
	switch {
	case statusCode == 0:
		return FailureRetryable
	case statusCode == http.StatusTooManyRequests:
		return FailureRetryable
	case statusCode >= 500:
		return FailureRetryable
	default:
		return FailureClient
	}
}

// KindOf returns the failure kind of err, or empty string if it is not a ProviderError
func KindOf(err error) FailureKind {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Kind
	}
	return ""
}
