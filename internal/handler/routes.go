package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// RegisterRoutes mounts the assistant routes. limited wraps the routes that
// start model work with the rate limiter.
func RegisterRoutes(mux *http.ServeMux, h *AgentHandler, health *HealthHandler, upgrader *websocket.Upgrader, limited func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /health", health.HealthCheck)

	// Model work is rate limited per client IP
	mux.Handle("POST /api/ai/chat", limited(http.HandlerFunc(h.Chat)))
	mux.Handle("POST /api/ai/chat/stream", limited(http.HandlerFunc(h.StreamChat)))
	mux.Handle("POST /api/ai/chat/confirm", limited(http.HandlerFunc(h.Confirm)))
	mux.Handle("GET /api/ai/chat/ws", limited(h.WebSocketChat(upgrader)))

	mux.HandleFunc("GET /api/ai/chat/history", h.GetHistory)
	mux.HandleFunc("DELETE /api/ai/chat/history", h.ClearHistory)
	mux.HandleFunc("GET /api/ai/conversations", h.ListConversations)

	mux.HandleFunc("GET /api/ai/favorites", h.ListFavorites)
	mux.HandleFunc("POST /api/ai/favorites", h.AddFavorite)
	mux.HandleFunc("DELETE /api/ai/favorites/{id}", h.RemoveFavorite)

	mux.HandleFunc("GET /api/ai/config", h.GetConfig)
}
