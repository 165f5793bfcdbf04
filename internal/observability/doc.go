// Package observability provides structured logging and in-memory metrics
// for the cascade gateway.
//
// This package implements:
//   - zap logger construction from LOG_LEVEL / LOG_FORMAT
//   - Per-provider attempt counters fed by the cascade as an AttemptRecorder
//
// Metrics live in process memory and reset on restart.
package observability
