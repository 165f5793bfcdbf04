package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/upb/llm-cascade/services/attempts"
	"github.com/upb/llm-cascade/services/providers"
	"github.com/upb/llm-cascade/utils"
	"go.uber.org/zap"
)

const readinessTimeout = 5 * time.Second

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// AttemptLogStats is the part of the attempt logger readiness looks at
type AttemptLogStats interface {
	Stats() attempts.Stats
}

// readinessCheck reports a human readable state and whether it blocks traffic
type readinessCheck struct {
	name string
	run  func(ctx context.Context) (state string, ready bool)
}

// HealthHandler serves the liveness and readiness endpoints
type HealthHandler struct {
	checks []readinessCheck
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and attemptLog are nil
// when attempt persistence is disabled.
func NewHealthHandler(db *sql.DB, attemptLog AttemptLogStats, catalog *providers.Catalog, credentials providers.CredentialSet, logger *zap.Logger) *HealthHandler {
	h := &HealthHandler{logger: logger}

	h.checks = append(h.checks, readinessCheck{name: "database", run: func(ctx context.Context) (string, bool) {
		if db == nil {
			return "disabled", true
		}
		if err := pingDatabase(ctx, db); err != nil {
			h.logger.Warn("database health check failed", zap.Error(err))
			return "unhealthy", false
		}
		return "healthy", true
	}})

	h.checks = append(h.checks, readinessCheck{name: "attempt_log", run: func(context.Context) (string, bool) {
		if attemptLog == nil {
			return "disabled", true
		}
		stats := attemptLog.Stats()
		if !stats.Started {
			return "stopped", false
		}
		return fmt.Sprintf("written=%d dropped=%d failed=%d pending=%d/%d",
			stats.Written, stats.Dropped, stats.Failed, stats.PendingRecords, stats.BufferSize), true
	}})

	// Requests may bring their own keys, so missing server credentials never block traffic.
	if catalog != nil {
		h.checks = append(h.checks, readinessCheck{name: "providers", run: func(context.Context) (string, bool) {
			configured := 0
			for _, name := range catalog.Names() {
				if _, ok := credentials.Lookup(name); ok {
					configured++
				}
			}
			return fmt.Sprintf("%d/%d with credentials", configured, catalog.Len()), true
		}})
	}

	return h
}

// HandleHealth handles GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz. Any blocking check answers 503.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]string, len(h.checks)),
	}
	httpStatus := http.StatusOK

	for _, check := range h.checks {
		state, ready := check.run(ctx)
		response.Checks[check.name] = state
		if !ready {
			response.Status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

func pingDatabase(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
