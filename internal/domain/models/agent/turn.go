package agent

import (
	"encoding/json"
	"time"
)

// Turn roles persisted in a conversation
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleError     = "error"
	RoleSystem    = "system"
)

// Turn is one persisted message in a conversation. Turns are immutable once
// appended.
type Turn struct {
	ID             int64             `json:"id"`
	ConversationID string            `json:"conversation_id"`
	Role           string            `json:"role"`
	Content        string            `json:"content"`
	ToolCalls      []ToolCallSummary `json:"tool_calls,omitempty"`
	CreatedAt      time.Time         `json:"timestamp"`
}

// ToolCallSummary records a tool invocation inside the turn that produced it.
type ToolCallSummary struct {
	Tool        string          `json:"tool"`
	Description string          `json:"description,omitempty"`
	Arguments   json.RawMessage `json:"arguments,omitempty"`
	Result      string          `json:"result,omitempty"`
	Confirmed   bool            `json:"confirmed,omitempty"`
}

// ConversationSummary is a row of the conversation listing.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id"`
	StartedAt      time.Time `json:"started"`
	LastMessageAt  time.Time `json:"last_msg"`
	MessageCount   int       `json:"msg_count"`
	FirstMessage   string    `json:"first_message"`
}
