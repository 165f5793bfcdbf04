package cascade

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/upb/llm-cascade/services/providers"
)

// maxBackoffShift caps the number of doublings so the delay cannot overflow
const maxBackoffShift = 20

// RetryPolicy decides whether to retry an attempt against the same provider
// and how long to wait before doing so
type RetryPolicy struct {
	// MaxAttempts bounds the attempts per provider, including the first one
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt, doubled each time
	InitialBackoff time.Duration

	// MaxJitter bounds the random delay added to every backoff
	MaxJitter time.Duration

	// Jitter returns a value in [0, 1). Nil uses math/rand.
	Jitter func() float64
}

// DefaultRetryPolicy returns a sensible default retry policy
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxJitter:      1 * time.Second,
	}
}

// ShouldRetry reports whether the attempt at attemptIndex (zero based) that
// failed with kind may be followed by another attempt against the same
// provider. Only FailureRetryable (429, 5xx, transport) is retried.
func (p RetryPolicy) ShouldRetry(attemptIndex int, kind providers.FailureKind) bool {
	if kind != providers.FailureRetryable {
		return false
	}
	return attemptIndex+1 < p.maxAttempts()
}

// BackoffDelay returns the wait after the attempt at attemptIndex:
// InitialBackoff * 2^attemptIndex plus jitter in [0, MaxJitter)
func (p RetryPolicy) BackoffDelay(attemptIndex int) time.Duration {
	if attemptIndex < 0 {
		attemptIndex = 0
	}
	if attemptIndex > maxBackoffShift {
		attemptIndex = maxBackoffShift
	}

	b := p.newBackOff()
	var delay time.Duration
	for i := 0; i <= attemptIndex; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// newBackOff is the unbounded delay schedule of one provider
func (p RetryPolicy) newBackOff() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.InitialBackoff
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxInterval = p.InitialBackoff << maxBackoffShift
	expo.MaxElapsedTime = 0
	expo.Reset()

	return &jitterBackOff{next: expo, max: p.MaxJitter, rand: p.jitter}
}

// retryBackOff bounds the schedule to MaxAttempts and stops when ctx is done
func (p RetryPolicy) retryBackOff(ctx context.Context) backoff.BackOffContext {
	retries := uint64(p.maxAttempts() - 1)
	return backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), retries), ctx)
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) jitter() float64 {
	if p.Jitter != nil {
		return p.Jitter()
	}
	return rand.Float64()
}

// jitterBackOff adds up to max of random delay on top of next. The
// library's RandomizationFactor scales jitter with the interval; here it is
// a fixed bound regardless of the attempt.
type jitterBackOff struct {
	next backoff.BackOff
	max  time.Duration
	rand func() float64
}

func (j *jitterBackOff) NextBackOff() time.Duration {
	d := j.next.NextBackOff()
	if d == backoff.Stop || j.max <= 0 {
		return d
	}
	return d + time.Duration(j.rand()*float64(j.max))
}

func (j *jitterBackOff) Reset() {
	j.next.Reset()
}
