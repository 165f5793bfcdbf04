package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/upb/llm-cascade/middleware"
	"github.com/upb/llm-cascade/models"
	"github.com/upb/llm-cascade/repositories"
	"github.com/upb/llm-cascade/services"
	"github.com/upb/llm-cascade/utils"
	"go.uber.org/zap"
)

const (
	defaultAttemptsLimit = 50
	maxAttemptsLimit     = 500
)

// AttemptsHandler serves the persisted attempt audit trail
type AttemptsHandler struct {
	repo   repositories.AttemptRepository
	logger *zap.Logger
}

// NewAttemptsHandler creates a new AttemptsHandler. repo is nil when
// persistence is disabled.
func NewAttemptsHandler(repo repositories.AttemptRepository, logger *zap.Logger) *AttemptsHandler {
	return &AttemptsHandler{
		repo:   repo,
		logger: logger,
	}
}

// HandleByCascade handles GET /api/v1/cascades/{id}/attempts
func (h *AttemptsHandler) HandleByCascade(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	attempts, err := h.repo.GetByCascadeID(r.Context(), chi.URLParam(r, "id"))
	h.writeTrail(w, r, attempts, err)
}

// HandleByRequest handles GET /api/v1/requests/{id}/attempts
func (h *AttemptsHandler) HandleByRequest(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	attempts, err := h.repo.GetByRequestID(r.Context(), chi.URLParam(r, "id"))
	h.writeTrail(w, r, attempts, err)
}

// HandleList handles GET /api/v1/attempts?provider=&limit=&offset=
func (h *AttemptsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}

	query := r.URL.Query()
	limit, err := parseBoundedInt(query.Get("limit"), defaultAttemptsLimit, 1, maxAttemptsLimit)
	if err != nil {
		_ = utils.WriteBadRequest(w, "limit must be an integer between 1 and 500", nil)
		return
	}
	offset, err := parseBoundedInt(query.Get("offset"), 0, 0, -1)
	if err != nil {
		_ = utils.WriteBadRequest(w, "offset must be a non-negative integer", nil)
		return
	}

	attempts, err := h.repo.ListRecent(r.Context(), query.Get("provider"), limit, offset)
	if err != nil {
		HandleServiceError(w, services.WrapError(services.ErrorTypeInternal, services.ErrDatabaseError.Message, err), h.logger)
		return
	}
	if attempts == nil {
		attempts = []*models.CascadeAttempt{}
	}

	if err := utils.WriteOK(w, attempts); err != nil {
		h.logger.Error("failed to write attempts response", zap.Error(err))
	}
}

func (h *AttemptsHandler) writeTrail(w http.ResponseWriter, r *http.Request, attempts []*models.CascadeAttempt, err error) {
	if err != nil {
		h.logger.Error("failed to load attempts",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		HandleServiceError(w, services.WrapError(services.ErrorTypeInternal, services.ErrDatabaseError.Message, err), h.logger)
		return
	}
	if len(attempts) == 0 {
		HandleServiceError(w, services.ErrAttemptsNotFound, h.logger)
		return
	}

	if err := utils.WriteOK(w, attempts); err != nil {
		h.logger.Error("failed to write attempts response", zap.Error(err))
	}
}

func (h *AttemptsHandler) enabled(w http.ResponseWriter) bool {
	if h.repo == nil {
		_ = utils.WriteServiceUnavailable(w, "attempt persistence is disabled")
		return false
	}
	return true
}

// parseBoundedInt parses raw, returning def when empty. hi < 0 means unbounded.
func parseBoundedInt(raw string, def, lo, hi int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < lo || (hi >= 0 && n > hi) {
		return 0, strconv.ErrRange
	}
	return n, nil
}
