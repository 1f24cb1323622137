package agent

import (
	"encoding/json"
	"fmt"
)

// Stream event types
const (
	EventToolStart          = "tool_start"          // A tool is about to execute
	EventTextDelta          = "text_delta"          // Incremental model text
	EventToolsUsed          = "tools_used"          // Summary of executed tools
	EventCharts             = "charts"              // Chart payloads from chart-tagged tools
	EventConfirmationNeeded = "confirmation_needed" // Loop suspended on a mutating tool (terminal)
	EventError              = "error"               // Unrecoverable failure (terminal)
	EventDone               = "done"                // Normal completion (terminal)
)

// Event is one item the agent loop emits for the transport to serialize.
//
// SSE format:
//
//	event: tool_start
//	data: {"tool": "query_database"}
type Event struct {
	Type string
	Data interface{}
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventDone, EventError, EventConfirmationNeeded:
		return true
	}
	return false
}

// ToolStartEvent announces a tool execution before its result is known.
type ToolStartEvent struct {
	Tool string `json:"tool"`
}

// TextDeltaEvent carries a chunk of model text; chunks concatenate.
type TextDeltaEvent struct {
	Text string `json:"text"`
}

// ToolUsed is one entry of the tools_used event.
type ToolUsed struct {
	Tool        string `json:"tool"`
	Description string `json:"description"`
}

// ConfirmationNeededEvent asks the client to confirm or reject a mutating call.
type ConfirmationNeededEvent struct {
	StateID           string          `json:"state_id"`
	Tool              string          `json:"tool"`
	ActionDescription string          `json:"action_description"`
	ActionDetails     json.RawMessage `json:"action_details"`
	ConversationID    string          `json:"conversation_id"`
}

// ErrorEvent reports a fatal failure.
type ErrorEvent struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// DoneEvent ends a successful stream.
type DoneEvent struct {
	ConversationID string `json:"conversation_id"`
}

// FormatSSE formats an event for transmission:
//
//	event: event_name
//	data: {"field": "value"}
//	<blank line>
func FormatSSE(eventType string, data interface{}) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal SSE event data: %w", err)
	}

	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, string(jsonData)), nil
}
