package cascade

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/upb/llm-cascade/services/providers"
	"go.uber.org/zap"
)

// maxErrorBodyBytes bounds how much of an error response is kept
const maxErrorBodyBytes = 4096

// HTTPDoer is the network transport, satisfied by *http.Client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds configuration for the cascade service
type Config struct {
	// Retry governs attempts within a single provider
	Retry RetryPolicy

	// Params are sent to every provider
	Params providers.GenerationParams

	// FallbackOnEmpty treats an empty but well-formed response as a failure
	// of that provider and moves on to the next one
	FallbackOnEmpty bool
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Retry:           DefaultRetryPolicy(),
		Params:          providers.DefaultGenerationParams(),
		FallbackOnEmpty: true,
	}
}

// Option customizes a Service
type Option func(*Service)

// WithTimer replaces the wall-clock timer used between retries. newTimer is
// called once per provider.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(s *Service) {
		s.newTimer = newTimer
	}
}

// WithRecorder attaches an attempt observer
func WithRecorder(recorder AttemptRecorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// WithClock replaces time.Now, for latency measurement in tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service tries providers in catalog order until one returns content
type Service struct {
	config   Config
	catalog  *providers.Catalog
	client   HTTPDoer
	newTimer func() backoff.Timer
	recorder AttemptRecorder
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a new cascade service
func NewService(config Config, catalog *providers.Catalog, client HTTPDoer, logger *zap.Logger, opts ...Option) *Service {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		config:   config,
		catalog:  catalog,
		client:   client,
		recorder: nopRecorder{},
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the provider catalog the service iterates
func (s *Service) Catalog() *providers.Catalog {
	return s.catalog
}

// Chat runs the cascade. It returns the first provider's content or a
// single *AllProvidersFailedError.
func (s *Service) Chat(ctx context.Context, messages []providers.ChatMessage, credentials providers.CredentialSet) (*Result, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}
	if err := providers.ValidateMessages(messages); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessages, err)
	}

	run := &cascadeRun{id: uuid.NewString(), requestID: RequestIDFromContext(ctx)}
	failed := &AllProvidersFailedError{CascadeID: run.id}

	s.logger.Debug("starting provider cascade",
		zap.String("cascade_id", run.id),
		zap.String("request_id", run.requestID),
		zap.Int("providers", s.catalog.Len()),
		zap.Int("messages", len(messages)))

	for _, desc := range s.catalog.Providers() {
		if err := ctx.Err(); err != nil {
			failed.Cause = err
			break
		}

		credential, ok := credentials.Lookup(desc.Name)
		if !ok {
			s.logger.Info("skipping provider due to missing credential",
				zap.String("cascade_id", run.id),
				zap.String("provider", desc.Name))
			s.record(run, Attempt{
				Provider: desc.Name,
				Protocol: desc.Protocol,
				Kind:     providers.FailureMissingCredential,
			})
			failed.Failures = append(failed.Failures, ProviderFailure{
				Provider: desc.Name,
				Kind:     providers.FailureMissingCredential,
			})
			continue
		}

		content, attempts, err := s.tryProvider(ctx, run, desc, credential, messages)
		if err == nil {
			s.logger.Info("provider cascade succeeded",
				zap.String("cascade_id", run.id),
				zap.String("provider", desc.Name),
				zap.Int("attempts", attempts))
			return &Result{
				ID:       run.id,
				Content:  content,
				Provider: desc.Name,
				Attempts: attempts,
				Trace:    run.trace,
			}, nil
		}

		failure := ProviderFailure{
			Provider: desc.Name,
			Kind:     providers.KindOf(err),
			Attempts: attempts,
			Err:      err,
		}
		var provErr *providers.ProviderError
		if errors.As(err, &provErr) {
			failure.StatusCode = provErr.StatusCode
		}
		failed.Failures = append(failed.Failures, failure)

		s.logger.Warn("provider failed",
			zap.String("cascade_id", run.id),
			zap.String("provider", desc.Name),
			zap.String("kind", string(failure.Kind)),
			zap.Int("attempts", attempts),
			zap.Error(err))

		if ctxErr := ctx.Err(); ctxErr != nil {
			failed.Cause = ctxErr
			break
		}
	}

	s.logger.Error("all providers failed",
		zap.String("cascade_id", run.id),
		zap.String("summary", failed.Summary()))

	return nil, failed
}

// cascadeRun carries per-call state
type cascadeRun struct {
	id        string
	requestID string
	trace     []Attempt
}

// tryProvider attempts one provider, retrying in place on retryable failures.
// It returns the content, the number of network attempts and the last error.
func (s *Service) tryProvider(ctx context.Context, run *cascadeRun, desc providers.ProviderDescriptor, credential string, messages []providers.ChatMessage) (string, int, error) {
	req, err := BuildRequest(desc, credential, messages, s.config.Params)
	if err != nil {
		s.recordFailure(run, desc, 0, 0, err)
		return "", 0, err
	}

	var (
		content    string
		attempts   int
		lastStatus int
	)

	operation := func() error {
		index := attempts
		attempts++

		start := s.now()
		body, status, err := s.send(ctx, desc, req)
		latency := s.now().Sub(start)

		if err != nil {
			lastStatus = status
			s.recordFailure(run, desc, index, latency, err)
			if ctx.Err() != nil || !s.config.Retry.ShouldRetry(index, providers.KindOf(err)) {
				return backoff.Permanent(err)
			}
			return err
		}

		text, err := ExtractContent(desc, body)
		if err != nil {
			s.logger.Error("failed to parse provider response",
				zap.String("provider", desc.Name),
				zap.Int("status_code", status),
				zap.Error(err))
			s.recordFailure(run, desc, index, latency, err)
			return backoff.Permanent(err)
		}

		if text == "" && s.config.FallbackOnEmpty {
			emptyErr := providers.NewProviderError(desc.Name, providers.FailureEmpty, status, "", errEmptyContent)
			s.recordFailure(run, desc, index, latency, emptyErr)
			return backoff.Permanent(emptyErr)
		}

		s.record(run, Attempt{
			Provider:   desc.Name,
			Protocol:   desc.Protocol,
			Index:      index,
			StatusCode: status,
			Latency:    latency,
		})
		content = text
		return nil
	}

	notify := func(err error, delay time.Duration) {
		s.logger.Warn("provider attempt failed, retrying",
			zap.String("cascade_id", run.id),
			zap.String("provider", desc.Name),
			zap.Int("status_code", lastStatus),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", delay))
	}

	var timer backoff.Timer
	if s.newTimer != nil {
		timer = s.newTimer()
	}

	err = backoff.RetryNotifyWithTimer(operation, s.config.Retry.retryBackOff(ctx), notify, timer)
	if err != nil {
		// cancelled while waiting between attempts
		var provErr *providers.ProviderError
		if !errors.As(err, &provErr) {
			err = providers.NewProviderError(desc.Name, providers.FailureRetryable, lastStatus, "", err)
		}
		return "", attempts, err
	}
	return content, attempts, nil
}

// send performs one POST and returns the body of a 2xx response
func (s *Service) send(ctx context.Context, desc providers.ProviderDescriptor, req *providers.HTTPRequest) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, 0, providers.NewConfigurationError(desc.Name, err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		// *url.Error embeds the request URL, which may carry a credential
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, 0, providers.NewProviderError(desc.Name, providers.FailureRetryable, 0, "", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))
		return nil, httpResp.StatusCode, providers.NewStatusError(desc.Name, httpResp.StatusCode, string(errBody))
	}

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, 0, providers.NewProviderError(desc.Name, providers.FailureRetryable, 0, "", err)
	}

	return body, httpResp.StatusCode, nil
}

func (s *Service) recordFailure(run *cascadeRun, desc providers.ProviderDescriptor, index int, latency time.Duration, err error) {
	attempt := Attempt{
		Provider: desc.Name,
		Protocol: desc.Protocol,
		Index:    index,
		Kind:     providers.KindOf(err),
		Latency:  latency,
		Err:      err,
	}
	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		attempt.StatusCode = provErr.StatusCode
	}
	s.record(run, attempt)
}

func (s *Service) record(run *cascadeRun, attempt Attempt) {
	attempt.CascadeID = run.id
	attempt.RequestID = run.requestID
	attempt.At = s.now()
	run.trace = append(run.trace, attempt)
	s.recorder.RecordAttempt(attempt)
}
