package agent

import (
	"encoding/json"
	"time"
)

// PendingAction is a mutating tool call waiting for the user's decision.
// Resume carries what the loop needs to continue the exchange afterwards.
type PendingAction struct {
	StateID   string          `json:"state_id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
	CreatedAt time.Time       `json:"created_at"`
	TTL       time.Duration   `json:"ttl"`
	Resume    ResumeContext   `json:"resume"`
}

// ExpiresAt returns the instant after which the action can no longer be resolved.
func (a *PendingAction) ExpiresAt() time.Time {
	return a.CreatedAt.Add(a.TTL)
}

// Expired reports whether the action is past its TTL at now.
func (a *PendingAction) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt())
}

// ResumeContext is the suspended exchange.
type ResumeContext struct {
	ConversationID string            `json:"conversation_id"`
	UserMessage    string            `json:"user_message"`
	System         string            `json:"system"`
	Transcript     []Message         `json:"transcript"`
	ToolCallID     string            `json:"tool_call_id"`
	ToolsUsed      []ToolCallSummary `json:"tools_used,omitempty"`
}

// Outcome is the result of resolving a PendingAction.
type Outcome struct {
	StateID   string
	ToolName  string
	Confirmed bool
	// Result is the executor's JSON-serializable value (nil when cancelled).
	Result interface{}
	// ToolErr is set when the executor failed; the action is still consumed.
	ToolErr error
	Resume  ResumeContext
}
