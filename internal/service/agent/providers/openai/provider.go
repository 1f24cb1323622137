// Package openai adapts the OpenAI chat completions API (and compatible
// endpoints) to the agent Generator interface.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	agentsvc "github.com/miguelbenajes/HoldedConnector/internal/domain/services/agent"
)

// DefaultModel is used when the request does not name one.
const DefaultModel = "gpt-4o-mini"

// Provider streams chat completions.
type Provider struct {
	client *goopenai.Client
	model  string
	logger *slog.Logger
}

// NewProvider creates a provider. baseURL may be empty for the public API.
func NewProvider(apiKey, baseURL, model string, logger *slog.Logger) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Provider{
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}, nil
}

func (p *Provider) Name() string {
	return "openai"
}

func (p *Provider) Generate(ctx context.Context, req *agentsvc.GenerateRequest) (<-chan agentsvc.Chunk, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: toMessages(req.System, req.Messages),
		Tools:    toTools(req.Tools),
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start completion stream: %w", err)
	}

	chunks := make(chan agentsvc.Chunk)
	go p.pump(ctx, stream, chunks)
	return chunks, nil
}

// pump forwards text deltas as they arrive and emits tool calls once the
// response is complete, since their arguments stream in fragments.
func (p *Provider) pump(ctx context.Context, stream *goopenai.ChatCompletionStream, out chan<- agentsvc.Chunk) {
	defer close(out)
	defer stream.Close()

	send := func(c agentsvc.Chunk) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	acc := newToolCallAccumulator()
	var finishReason string

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			send(agentsvc.Chunk{Err: err})
			return
		}

		for _, choice := range resp.Choices {
			if choice.Delta.Content != "" {
				if !send(agentsvc.Chunk{TextDelta: choice.Delta.Content}) {
					return
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				acc.add(tc)
			}
			if choice.FinishReason != "" {
				finishReason = string(choice.FinishReason)
			}
		}
	}

	calls, err := acc.calls()
	if err != nil {
		send(agentsvc.Chunk{Err: err})
		return
	}
	for i := range calls {
		if !send(agentsvc.Chunk{ToolCall: &calls[i]}) {
			return
		}
	}

	p.logger.Debug("completion finished", "finish_reason", finishReason, "tool_calls", len(calls))
	send(agentsvc.Chunk{FinishReason: finishReason})
}

// toolCallAccumulator joins streamed tool-call fragments by index.
type toolCallAccumulator struct {
	byIndex map[int]*partialCall
	next    int
}

type partialCall struct {
	id   string
	name string
	args []byte
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byIndex: make(map[int]*partialCall)}
}

func (a *toolCallAccumulator) add(tc goopenai.ToolCall) {
	var idx int
	switch {
	case tc.Index != nil:
		idx = *tc.Index
	case tc.ID != "":
		// Without indexes a new id starts the next call
		idx = a.next
		a.next++
	case a.next > 0:
		// Fragments without an id continue the current call
		idx = a.next - 1
	}

	pc, ok := a.byIndex[idx]
	if !ok {
		pc = &partialCall{}
		a.byIndex[idx] = pc
	}
	if tc.ID != "" {
		pc.id = tc.ID
	}
	if tc.Function.Name != "" {
		pc.name = tc.Function.Name
	}
	pc.args = append(pc.args, tc.Function.Arguments...)
}

func (a *toolCallAccumulator) calls() ([]agent.ToolCall, error) {
	indexes := make([]int, 0, len(a.byIndex))
	for idx := range a.byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]agent.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		pc := a.byIndex[idx]
		if pc.name == "" {
			return nil, fmt.Errorf("malformed tool call at index %d: missing name", idx)
		}
		args := json.RawMessage(pc.args)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		if !json.Valid(args) {
			return nil, fmt.Errorf("malformed arguments for tool call %s", pc.name)
		}
		out = append(out, agent.ToolCall{ID: pc.id, Name: pc.name, Arguments: args})
	}
	return out, nil
}

func toMessages(system string, messages []agent.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: system})
	}

	for _, m := range messages {
		msg := goopenai.ChatCompletionMessage{Content: m.Content}
		switch m.Role {
		case agent.MessageRoleSystem:
			msg.Role = goopenai.ChatMessageRoleSystem
		case agent.MessageRoleAssistant:
			msg.Role = goopenai.ChatMessageRoleAssistant
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
					ID:   tc.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
		case agent.MessageRoleTool:
			msg.Role = goopenai.ChatMessageRoleTool
			msg.ToolCallID = m.ToolCallID
		default:
			msg.Role = goopenai.ChatMessageRoleUser
		}
		out = append(out, msg)
	}
	return out
}

func toTools(defs []agent.ToolDefinition) []goopenai.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]goopenai.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return out
}
