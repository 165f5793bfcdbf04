package handlers

import (
	"context"
	"net/http"

	"github.com/upb/llm-cascade/middleware"
	"github.com/upb/llm-cascade/services"
	"github.com/upb/llm-cascade/services/cascade"
	"github.com/upb/llm-cascade/services/providers"
	"github.com/upb/llm-cascade/utils"
	"go.uber.org/zap"
)

// ChatRequest is the body of POST /api/v1/chat
type ChatRequest struct {
	Messages []providers.ChatMessage `json:"messages" validate:"required,min=1,dive"`

	// Credentials override server-configured credentials per provider
	Credentials map[string]string `json:"credentials,omitempty"`
}

// ChatResponse is the payload returned for a successful cascade
type ChatResponse struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Provider string `json:"provider"`
	Attempts int    `json:"attempts"`
}

// ChatService runs a provider cascade
type ChatService interface {
	Chat(ctx context.Context, messages []providers.ChatMessage, credentials providers.CredentialSet) (*cascade.Result, error)
}

// ChatHandler handles chat requests
type ChatHandler struct {
	service     ChatService
	credentials providers.CredentialSet
	logger      *zap.Logger
}

// NewChatHandler creates a new ChatHandler. credentials are the
// server-configured defaults that request credentials may override.
func NewChatHandler(service ChatService, credentials providers.CredentialSet, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service:     service,
		credentials: credentials,
		logger:      logger,
	}
}

// HandleChat handles POST /api/v1/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req ChatRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.logger.Debug("invalid chat request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	credentials := h.credentials.Merge(providers.CredentialSet(req.Credentials))

	ctx = cascade.ContextWithRequestID(ctx, requestID)
	result, err := h.service.Chat(ctx, req.Messages, credentials)
	if err != nil {
		HandleServiceError(w, services.FromCascadeError(err), h.logger)
		return
	}

	h.logger.Info("chat completed",
		zap.String("request_id", requestID),
		zap.String("cascade_id", result.ID),
		zap.String("provider", result.Provider),
		zap.Int("attempts", result.Attempts))

	if err := utils.WriteOK(w, ChatResponse{
		ID:       result.ID,
		Content:  result.Content,
		Provider: result.Provider,
		Attempts: result.Attempts,
	}); err != nil {
		h.logger.Error("failed to write chat response", zap.Error(err))
	}
}
