// Package anthropic adapts Claude models, through the meridian-llm-go
// provider library, to the agent Generator interface.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	llmprovider "github.com/haowjy/meridian-llm-go"
	llmanthropic "github.com/haowjy/meridian-llm-go/providers/anthropic"

	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	agentsvc "github.com/miguelbenajes/HoldedConnector/internal/domain/services/agent"
)

// DefaultModel is used when the request does not name one.
const DefaultModel = "claude-sonnet-4-5"

// Library block and delta kinds.
const (
	roleUser      = "user"
	roleAssistant = "assistant"

	blockTypeText       = "text"
	blockTypeToolUse    = "tool_use"
	blockTypeToolResult = "tool_result"

	deltaTypeText      = "text_delta"
	deltaTypeInputJSON = "input_json_delta"
)

// streamer is the part of the library provider the agent needs.
type streamer interface {
	StreamResponse(ctx context.Context, req *llmprovider.GenerateRequest) (<-chan llmprovider.StreamEvent, error)
}

// Provider streams Claude responses.
type Provider struct {
	client streamer
	model  string
	logger *slog.Logger
}

// NewProvider creates a provider backed by the Anthropic API.
func NewProvider(apiKey, model string, logger *slog.Logger) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable not set")
	}
	client, err := llmanthropic.NewProvider(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Anthropic provider: %w", err)
	}
	return newProvider(client, model, logger), nil
}

func newProvider(client streamer, model string, logger *slog.Logger) *Provider {
	if model == "" {
		model = DefaultModel
	}
	return &Provider{client: client, model: model, logger: logger}
}

func (p *Provider) Name() string {
	return "anthropic"
}

func (p *Provider) Generate(ctx context.Context, req *agentsvc.GenerateRequest) (<-chan agentsvc.Chunk, error) {
	libReq, err := toLibraryRequest(p.resolveModel(req.Model), req)
	if err != nil {
		return nil, err
	}

	events, err := p.client.StreamResponse(ctx, libReq)
	if err != nil {
		return nil, fmt.Errorf("failed to start Anthropic stream: %w", err)
	}

	chunks := make(chan agentsvc.Chunk)
	go p.pump(ctx, events, chunks)
	return chunks, nil
}

// resolveModel keeps requests for other backends' models off the Anthropic API.
func (p *Provider) resolveModel(model string) string {
	if strings.HasPrefix(model, "claude-") {
		return model
	}
	return p.model
}

// pump forwards text deltas as they arrive and emits tool calls once the
// stream ends, since their input JSON streams in fragments.
func (p *Provider) pump(ctx context.Context, events <-chan llmprovider.StreamEvent, out chan<- agentsvc.Chunk) {
	defer close(out)

	send := func(c agentsvc.Chunk) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}
	abandon := func() {
		// Let the library goroutine finish its sends
		go func() {
			for range events {
			}
		}()
	}

	acc := newToolUseAccumulator()
	var stopReason string

	for event := range events {
		if event.Error != nil {
			send(agentsvc.Chunk{Err: event.Error})
			abandon()
			return
		}
		if event.Metadata != nil {
			stopReason = string(event.Metadata.StopReason)
		}
		d := event.Delta
		if d == nil {
			continue
		}

		acc.start(d.BlockIndex, firstSet(d.ToolCallID, d.ToolUseID), firstSet(d.ToolCallName, d.ToolName))
		switch d.DeltaType {
		case deltaTypeText:
			if d.TextDelta != nil && *d.TextDelta != "" {
				if !send(agentsvc.Chunk{TextDelta: *d.TextDelta}) {
					abandon()
					return
				}
			}
		case deltaTypeInputJSON:
			if d.JSONDelta != nil {
				acc.append(d.BlockIndex, *d.JSONDelta)
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

	finish := finishReason(stopReason)
	p.logger.Debug("anthropic stream finished", "stop_reason", stopReason, "tool_calls", len(calls))
	send(agentsvc.Chunk{FinishReason: finish})
}

// firstSet prefers the current delta field over its legacy alias.
func firstSet(current, legacy *string) string {
	switch {
	case current != nil:
		return *current
	case legacy != nil:
		return *legacy
	}
	return ""
}

// finishReason maps Anthropic stop reasons onto the agent's vocabulary.
func finishReason(stop string) string {
	switch stop {
	case "tool_use":
		return "tool_calls"
	case "max_tokens":
		return "length"
	case "", "end_turn", "stop_sequence":
		return "stop"
	default:
		return stop
	}
}

// toolUseAccumulator joins tool_use blocks by block index.
type toolUseAccumulator struct {
	byIndex map[int]*partialToolUse
}

type partialToolUse struct {
	id    string
	name  string
	input strings.Builder
}

func newToolUseAccumulator() *toolUseAccumulator {
	return &toolUseAccumulator{byIndex: make(map[int]*partialToolUse)}
}

func (a *toolUseAccumulator) get(idx int) *partialToolUse {
	pt, ok := a.byIndex[idx]
	if !ok {
		pt = &partialToolUse{}
		a.byIndex[idx] = pt
	}
	return pt
}

func (a *toolUseAccumulator) start(idx int, id, name string) {
	if id == "" && name == "" {
		return
	}
	pt := a.get(idx)
	if id != "" {
		pt.id = id
	}
	if name != "" {
		pt.name = name
	}
}

func (a *toolUseAccumulator) append(idx int, fragment string) {
	a.get(idx).input.WriteString(fragment)
}

func (a *toolUseAccumulator) calls() ([]agent.ToolCall, error) {
	indexes := make([]int, 0, len(a.byIndex))
	for idx := range a.byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]agent.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		pt := a.byIndex[idx]
		if pt.name == "" {
			return nil, fmt.Errorf("malformed tool use at block %d: missing name", idx)
		}
		args := json.RawMessage(pt.input.String())
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		if !json.Valid(args) {
			return nil, fmt.Errorf("malformed input for tool use %s", pt.name)
		}
		out = append(out, agent.ToolCall{ID: pt.id, Name: pt.name, Arguments: args})
	}
	return out, nil
}

// toLibraryRequest converts the agent transcript into library messages.
// System messages join the system prompt and consecutive tool results are
// grouped into a single user message.
func toLibraryRequest(model string, req *agentsvc.GenerateRequest) (*llmprovider.GenerateRequest, error) {
	system := []string{}
	if req.System != "" {
		system = append(system, req.System)
	}

	var messages []llmprovider.Message
	for _, m := range req.Messages {
		switch m.Role {
		case agent.MessageRoleSystem:
			if m.Content != "" {
				system = append(system, m.Content)
			}

		case agent.MessageRoleAssistant:
			msg := llmprovider.Message{Role: roleAssistant}
			if m.Content != "" {
				msg.Blocks = append(msg.Blocks, textBlock(m.Content, 0))
			}
			for _, tc := range m.ToolCalls {
				block, err := toolUseBlock(tc, len(msg.Blocks))
				if err != nil {
					return nil, err
				}
				msg.Blocks = append(msg.Blocks, block)
			}
			if len(msg.Blocks) > 0 {
				messages = append(messages, msg)
			}

		case agent.MessageRoleTool:
			n := len(messages)
			if n > 0 && isToolResultMessage(messages[n-1]) {
				last := &messages[n-1]
				last.Blocks = append(last.Blocks, toolResultBlock(m, len(last.Blocks)))
				continue
			}
			messages = append(messages, llmprovider.Message{
				Role:   roleUser,
				Blocks: []*llmprovider.Block{toolResultBlock(m, 0)},
			})

		default:
			messages = append(messages, llmprovider.Message{
				Role:   roleUser,
				Blocks: []*llmprovider.Block{textBlock(m.Content, 0)},
			})
		}
	}

	tools, err := toLibraryTools(req.Tools)
	if err != nil {
		return nil, err
	}

	params := &llmprovider.RequestParams{Tools: tools}
	if len(system) > 0 {
		prompt := strings.Join(system, "\n\n")
		params.System = &prompt
	}

	return &llmprovider.GenerateRequest{
		Messages: messages,
		Model:    model,
		Params:   params,
	}, nil
}

func textBlock(text string, seq int) *llmprovider.Block {
	return &llmprovider.Block{
		BlockType:   blockTypeText,
		Sequence:    seq,
		TextContent: &text,
	}
}

func toolUseBlock(tc agent.ToolCall, seq int) (*llmprovider.Block, error) {
	input := map[string]interface{}{}
	if len(tc.Arguments) > 0 {
		if err := json.Unmarshal(tc.Arguments, &input); err != nil {
			return nil, fmt.Errorf("tool call %s has non-object arguments: %w", tc.ID, err)
		}
	}
	return &llmprovider.Block{
		BlockType: blockTypeToolUse,
		Sequence:  seq,
		Content: map[string]interface{}{
			"tool_use_id": tc.ID,
			"tool_name":   tc.Name,
			"input":       input,
		},
	}, nil
}

func toolResultBlock(m agent.Message, seq int) *llmprovider.Block {
	return &llmprovider.Block{
		BlockType: blockTypeToolResult,
		Sequence:  seq,
		Content: map[string]interface{}{
			"tool_use_id": m.ToolCallID,
			"is_error":    false,
			"result":      m.Content,
		},
	}
}

func isToolResultMessage(m llmprovider.Message) bool {
	if m.Role != roleUser || len(m.Blocks) == 0 {
		return false
	}
	return m.Blocks[0].BlockType == blockTypeToolResult
}

func toLibraryTools(defs []agent.ToolDefinition) ([]llmprovider.Tool, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]llmprovider.Tool, 0, len(defs))
	for _, d := range defs {
		tool, err := llmprovider.NewCustomTool(d.Name, d.Description, d.Parameters)
		if err != nil {
			return nil, fmt.Errorf("failed to create tool %q: %w", d.Name, err)
		}
		out = append(out, *tool)
	}
	return out, nil
}
