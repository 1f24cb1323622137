package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	agentsvc "github.com/miguelbenajes/HoldedConnector/internal/domain/services/agent"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 1 << 16
)

// wsFrame is one server-to-client WebSocket message.
type wsFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// NewUpgrader builds an upgrader that admits the configured origins.
// An empty list admits same-origin requests only.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[origin] {
				return true
			}
			return origin == "http://"+r.Host || origin == "https://"+r.Host
		},
	}
}

// WebSocketChat carries the stream events over a WebSocket. The first client
// frame is the chat request; closing the socket cancels the exchange.
// GET /api/ai/chat/ws
func (h *AgentHandler) WebSocketChat(upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error
			h.logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		conn.SetReadLimit(wsMaxMessage)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		var req agentsvc.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			h.writeFrame(conn, agent.EventError, agent.ErrorEvent{Content: "Invalid request"})
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		stream, err := h.service.StreamChat(ctx, &req)
		if err != nil {
			h.writeFrame(conn, agent.EventError, agent.ErrorEvent{Content: err.Error()})
			return
		}

		// The reader only watches for the close frame
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-stream.Events:
				if !ok {
					h.closeNormal(conn)
					return
				}
				if err := h.writeFrame(conn, ev.Type, ev.Data); err != nil {
					h.logger.Warn("websocket write failed", "conversation_id", stream.ConversationID, "error", err)
					return
				}
				if ev.Terminal() {
					h.closeNormal(conn)
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-ctx.Done():
				h.logger.Debug("websocket closed by client", "conversation_id", stream.ConversationID)
				return
			}
		}
	}
}

func (h *AgentHandler) writeFrame(conn *websocket.Conn, event string, data interface{}) error {
	payload, err := json.Marshal(wsFrame{Event: event, Data: data})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *AgentHandler) closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
