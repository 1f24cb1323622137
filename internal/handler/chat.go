package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	agentsvc "github.com/miguelbenajes/HoldedConnector/internal/domain/services/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/handler/sse"
	"github.com/miguelbenajes/HoldedConnector/internal/httputil"
)

// AgentHandler serves the assistant's chat, confirmation and history routes.
// Handlers only talk to the chat service.
type AgentHandler struct {
	service   agentsvc.ChatService
	sseConfig *sse.Config
	logger    *slog.Logger
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(service agentsvc.ChatService, sseConfig *sse.Config, logger *slog.Logger) *AgentHandler {
	if sseConfig == nil {
		sseConfig = sse.DefaultConfig()
	}
	return &AgentHandler{
		service:   service,
		sseConfig: sseConfig,
		logger:    logger,
	}
}

// StreamChat runs one exchange and streams its events
// POST /api/ai/chat/stream
func (h *AgentHandler) StreamChat(w http.ResponseWriter, r *http.Request) {
	var req agentsvc.ChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	stream, err := h.service.StreamChat(ctx, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writer := sse.NewWriter(w, flusher)
	keepAlive := sse.NewTickerKeepAlive(h.sseConfig.KeepAliveInterval)
	stopped := keepAlive.Start(writer, h.logger)
	defer keepAlive.Stop()

	h.logger.Debug("chat stream started", "conversation_id", stream.ConversationID)

	for {
		select {
		case ev, ok := <-stream.Events:
			if !ok {
				return
			}
			if err := writer.WriteEvent(ev); err != nil {
				h.logger.Warn("client disconnected", "conversation_id", stream.ConversationID, "error", err)
				return
			}
			if ev.Terminal() {
				h.logger.Debug("chat stream finished", "conversation_id", stream.ConversationID, "event", ev.Type)
				return
			}
		case <-stopped:
			return
		case <-ctx.Done():
			h.logger.Debug("client cancelled stream", "conversation_id", stream.ConversationID)
			return
		}
	}
}

// Chat runs one exchange to completion
// POST /api/ai/chat
func (h *AgentHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req agentsvc.ChatRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.Chat(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}

// Confirm resolves a pending mutating action
// POST /api/ai/chat/confirm
// Returns 410 when the action is unknown, resolved, or expired
func (h *AgentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req agentsvc.ConfirmRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.Confirm(r.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrActionExpired) {
			httputil.RespondJSON(w, http.StatusGone, &agentsvc.ChatResponse{
				Type:    agentsvc.ResponseError,
				Content: expiredActionMessage,
			})
			return
		}
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}

// GetHistory returns the turns of one conversation
// GET /api/ai/chat/history?conversation_id=:id
func (h *AgentHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := h.service.GetHistory(r.Context(), r.URL.Query().Get("conversation_id"))
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, turns)
}

// ClearHistory deletes the turns of one conversation
// DELETE /api/ai/chat/history?conversation_id=:id
func (h *AgentHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearHistory(r.Context(), r.URL.Query().Get("conversation_id")); err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ListConversations returns the most recent conversations
// GET /api/ai/conversations
func (h *AgentHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.service.ListConversations(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, conversations)
}

// GetConfig returns the public agent configuration
// GET /api/ai/config
func (h *AgentHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.service.Settings())
}
