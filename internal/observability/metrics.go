package observability

import (
	"sync"
	"time"

	"github.com/upb/llm-cascade/services/cascade"
	"github.com/upb/llm-cascade/services/providers"
)

// ProviderStats is a point-in-time copy of one provider's counters
type ProviderStats struct {
	Provider       string                          `json:"provider"`
	Attempts       int64                           `json:"attempts"` // network calls only
	Successes      int64                           `json:"successes"`
	Skips          int64                           `json:"skips"`
	Failures       map[providers.FailureKind]int64 `json:"failures"`
	LastStatusCode int                             `json:"last_status_code,omitempty"`
	LastLatencyMS  int64                           `json:"last_latency_ms"`
	LastSeen       time.Time                       `json:"last_seen"`
}

// Metrics collects per-provider attempt counters. It implements
// cascade.AttemptRecorder and is safe for concurrent use.
type Metrics struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats
}

var _ cascade.AttemptRecorder = (*Metrics)(nil)

// NewMetrics creates an empty collector
func NewMetrics() *Metrics {
	return &Metrics{stats: make(map[string]*ProviderStats)}
}

// RecordAttempt implements cascade.AttemptRecorder
func (m *Metrics) RecordAttempt(attempt cascade.Attempt) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[attempt.Provider]
	if !ok {
		s = &ProviderStats{
			Provider: attempt.Provider,
			Failures: make(map[providers.FailureKind]int64),
		}
		m.stats[attempt.Provider] = s
	}
	s.LastSeen = attempt.At

	// neither reaches the network
	switch attempt.Kind {
	case providers.FailureMissingCredential:
		s.Skips++
		return
	case providers.FailureConfiguration:
		s.Failures[attempt.Kind]++
		return
	}

	s.Attempts++
	s.LastStatusCode = attempt.StatusCode
	s.LastLatencyMS = attempt.Latency.Milliseconds()
	if attempt.Succeeded() {
		s.Successes++
		return
	}
	s.Failures[attempt.Kind]++
}

// Provider returns a copy of the counters for one provider
func (m *Metrics) Provider(name string) (ProviderStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stats[name]
	if !ok {
		return ProviderStats{}, false
	}
	return s.copy(), true
}

// Snapshot returns copies of all counters keyed by provider name
func (m *Metrics) Snapshot() map[string]ProviderStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]ProviderStats, len(m.stats))
	for name, s := range m.stats {
		out[name] = s.copy()
	}
	return out
}

func (s *ProviderStats) copy() ProviderStats {
	c := *s
	c.Failures = make(map[providers.FailureKind]int64, len(s.Failures))
	for k, v := range s.Failures {
		c.Failures[k] = v
	}
	return c
}
