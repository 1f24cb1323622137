package agent

import (
	"context"
	"encoding/json"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
)

// ChatService is the business surface behind the /api/ai routes.
type ChatService interface {
	// StreamChat starts the agent loop for one user message. Events arrive on
	// the returned channel until a terminal event; the channel is then closed.
	StreamChat(ctx context.Context, req *ChatRequest) (*ChatStream, error)

	// Chat runs the loop to completion and returns the collected result.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Confirm resolves a pending action. Unknown or expired ids return
	// domain.ErrActionExpired.
	Confirm(ctx context.Context, req *ConfirmRequest) (*ChatResponse, error)

	GetHistory(ctx context.Context, conversationID string) ([]agent.Turn, error)
	ClearHistory(ctx context.Context, conversationID string) error
	ListConversations(ctx context.Context) ([]agent.ConversationSummary, error)

	ListFavorites(ctx context.Context) ([]agent.Favorite, error)
	AddFavorite(ctx context.Context, req *AddFavoriteRequest) (*agent.Favorite, error)
	RemoveFavorite(ctx context.Context, id int64) error

	Settings() *Settings
}

// ChatRequest is the DTO for a user message
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatStream is a running exchange.
type ChatStream struct {
	ConversationID string
	Events         <-chan agent.Event
}

// ConfirmRequest is the DTO for resolving a pending action
type ConfirmRequest struct {
	StateID           string                 `json:"state_id"`
	Confirmed         bool                   `json:"confirmed"`
	OverrideArguments map[string]interface{} `json:"override_arguments,omitempty"`
}

// Response types
const (
	ResponseAssistant          = "assistant"
	ResponseConfirmationNeeded = "confirmation_needed"
	ResponseError              = "error"
)

// ChatResponse is the non-streaming result of a chat or confirm call.
type ChatResponse struct {
	Type             string                         `json:"type"`
	Content          string                         `json:"content"`
	ConversationID   string                         `json:"conversation_id,omitempty"`
	ToolCallsSummary []agent.ToolUsed               `json:"tool_calls_summary,omitempty"`
	Charts           []json.RawMessage              `json:"charts,omitempty"`
	Confirmation     *agent.ConfirmationNeededEvent `json:"confirmation,omitempty"`
}

// AddFavoriteRequest is the DTO for saving a query
type AddFavoriteRequest struct {
	Query string `json:"query"`
	Label string `json:"label,omitempty"`
}

// Settings is the public view of the agent configuration.
type Settings struct {
	Model             string     `json:"model"`
	Provider          string     `json:"provider"`
	SafeMode          bool       `json:"safe_mode"`
	MaxRounds         int        `json:"max_rounds"`
	PendingTTLSeconds int        `json:"pending_ttl_seconds"`
	Tools             []ToolInfo `json:"tools"`
}

// ToolInfo lists a registered tool.
type ToolInfo struct {
	Name           string               `json:"name"`
	Classification agent.Classification `json:"classification"`
}
