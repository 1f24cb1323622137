package agent

import (
	"context"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
)

// Generator is the language-model capability consumed by the agent loop.
// Given a transcript and a tool catalog it streams text increments and/or
// tool-call requests.
type Generator interface {
	// Generate starts one model call. The returned channel yields chunks in
	// order and is closed by the generator when the response ends. A chunk with
	// Err set is the last chunk of the response.
	Generate(ctx context.Context, req *GenerateRequest) (<-chan Chunk, error)

	// Name returns the provider name (e.g., "openai")
	Name() string
}

// GenerateRequest contains the parameters for one model call.
type GenerateRequest struct {
	Model    string
	System   string
	Messages []agent.Message
	Tools    []agent.ToolDefinition
}

// Chunk is one increment of a model response.
type Chunk struct {
	// TextDelta is incremental assistant text (may be empty).
	TextDelta string

	// ToolCall is a fully assembled tool-call request.
	ToolCall *agent.ToolCall

	// FinishReason is set on the final chunk ("stop", "tool_calls", "length").
	FinishReason string

	// Err reports a backend failure; no chunks follow it.
	Err error
}
