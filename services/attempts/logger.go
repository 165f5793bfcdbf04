package attempts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/upb/llm-cascade/models"
	"github.com/upb/llm-cascade/repositories"
	"github.com/upb/llm-cascade/services/cascade"
	"github.com/upb/llm-cascade/services/providers"
	"go.uber.org/zap"
)

// Logger persists cascade attempts asynchronously. Record never blocks the
// cascade: when the buffer is full the attempt is dropped and counted.
type Logger struct {
	repo        repositories.AttemptRepository
	logger      *zap.Logger
	records     chan *models.CascadeAttempt
	workerCount int
	bufferSize  int
	written     atomic.Int64
	dropped     atomic.Int64
	failed      atomic.Int64
	wg          sync.WaitGroup
	mu          sync.RWMutex
	started     bool
	stopped     bool
}

var _ cascade.AttemptRecorder = (*Logger)(nil)

// Config holds configuration for the Logger
type Config struct {
	BufferSize  int // Size of the record buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewLogger creates a new Logger instance
func NewLogger(repo repositories.AttemptRepository, logger *zap.Logger, config Config) *Logger {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}

	return &Logger{
		repo:        repo,
		logger:      logger,
		records:     make(chan *models.CascadeAttempt, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background workers
func (l *Logger) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return fmt.Errorf("attempt logger already started")
	}

	for i := 0; i < l.workerCount; i++ {
		l.wg.Add(1)
		go l.worker(i)
	}

	l.started = true
	l.logger.Info("started attempt logger",
		zap.Int("worker_count", l.workerCount),
		zap.Int("buffer_size", l.bufferSize))

	return nil
}

// Stop stops accepting records and waits for queued ones to be written
func (l *Logger) Stop(timeout time.Duration) error {
	l.mu.Lock()
	if !l.started || l.stopped {
		l.mu.Unlock()
		return fmt.Errorf("attempt logger not running")
	}
	l.stopped = true
	close(l.records)
	l.mu.Unlock()

	l.logger.Info("stopping attempt logger", zap.Int("pending_records", len(l.records)))

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.logger.Info("attempt logger stopped gracefully",
			zap.Int64("written", l.written.Load()),
			zap.Int64("dropped", l.dropped.Load()),
			zap.Int64("failed", l.failed.Load()))
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("attempt logger stop timeout after %v", timeout)
	}
}

// Record queues an attempt for persistence (non-blocking)
func (l *Logger) Record(attempt *models.CascadeAttempt) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.started || l.stopped {
		l.dropped.Add(1)
		return fmt.Errorf("attempt logger not running")
	}

	select {
	case l.records <- attempt:
		return nil
	default:
		l.dropped.Add(1)
		l.logger.Warn("attempt buffer full, dropping record",
			zap.String("cascade_id", attempt.CascadeID),
			zap.String("provider", attempt.Provider))
		return fmt.Errorf("attempt buffer full")
	}
}

// RecordAttempt implements cascade.AttemptRecorder
func (l *Logger) RecordAttempt(attempt cascade.Attempt) {
	_ = l.Record(FromAttempt(attempt))
}

// FromAttempt converts a cascade attempt into its persisted form
func FromAttempt(a cascade.Attempt) *models.CascadeAttempt {
	record := models.NewCascadeAttempt(a.CascadeID, a.Provider, string(a.Protocol), a.Index).
		WithRequest(a.RequestID).
		WithStatus(a.StatusCode).
		WithLatency(a.Latency).
		WithTimestamp(a.At)

	if !a.Succeeded() {
		msg := ""
		if a.Err != nil {
			msg = a.Err.Error()
		}
		var provErr *providers.ProviderError
		if errors.As(a.Err, &provErr) && strings.TrimSpace(provErr.Body) != "" {
			msg += ": " + errorDetail(provErr.Body)
		}
		record.WithFailure(string(a.Kind), RedactSecrets(msg))
	}
	return record
}

func (l *Logger) worker(id int) {
	defer l.wg.Done()

	l.logger.Debug("attempt worker started", zap.Int("worker_id", id))

	for record := range l.records {
		if err := l.persist(record); err != nil {
			l.failed.Add(1)
			l.logger.Error("failed to persist cascade attempt",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("cascade_id", record.CascadeID),
				zap.String("provider", record.Provider))
			continue
		}
		l.written.Add(1)
	}

	l.logger.Debug("attempt worker stopped", zap.Int("worker_id", id))
}

func (l *Logger) persist(record *models.CascadeAttempt) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return l.repo.Insert(ctx, record)
}

// Stats returns statistics about the logger
func (l *Logger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Stats{
		BufferSize:     l.bufferSize,
		PendingRecords: len(l.records),
		WorkerCount:    l.workerCount,
		Written:        l.written.Load(),
		Dropped:        l.dropped.Load(),
		Failed:         l.failed.Load(),
		Started:        l.started && !l.stopped,
	}
}

// Stats represents attempt logger statistics
type Stats struct {
	BufferSize     int
	PendingRecords int
	WorkerCount    int
	Written        int64 // persisted successfully
	Dropped        int64 // never queued
	Failed         int64 // rejected by the repository
	Started        bool
}
