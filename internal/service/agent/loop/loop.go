// Package loop drives one user message through the model and the tool
// registry, emitting stream events into a channel.
package loop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/repositories"
	agentsvc "github.com/miguelbenajes/HoldedConnector/internal/domain/services/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/service/agent/tools"
)

const (
	// DefaultMaxRounds bounds model calls per user message.
	DefaultMaxRounds = 10
	// DefaultTimeout bounds a whole exchange, model and tool waits included.
	DefaultTimeout = 120 * time.Second

	eventBufferSize = 32
)

// ToolRegistry is the part of *tools.Registry the loop needs.
type ToolRegistry interface {
	Get(name string) *tools.Tool
	Definitions() []agent.ToolDefinition
	Execute(ctx context.Context, call agent.ToolCall) (tools.ToolResult, error)
	ValidateArgs(name string, args json.RawMessage) *domain.ToolError
	Describe(name string, args json.RawMessage) string
}

// Config configures a Loop.
type Config struct {
	Model     string
	MaxRounds int
	Timeout   time.Duration
}

// Loop is safe for concurrent use; each Stream call runs independently.
type Loop struct {
	generator agentsvc.Generator
	registry  ToolRegistry
	pending   repositories.PendingActionStore
	config    Config
	logger    *slog.Logger
}

// New creates a Loop.
func New(generator agentsvc.Generator, registry ToolRegistry, pending repositories.PendingActionStore, config Config, logger *slog.Logger) *Loop {
	if config.MaxRounds <= 0 {
		config.MaxRounds = DefaultMaxRounds
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Loop{
		generator: generator,
		registry:  registry,
		pending:   pending,
		config:    config,
		logger:    logger,
	}
}

// Request is one exchange. Transcript must end with the user's message.
type Request struct {
	ConversationID string
	UserMessage    string
	System         string
	Transcript     []agent.Message
}

// Result is how an exchange ended.
type Result struct {
	ConversationID string
	UserMessage    string
	Text           string
	ToolsUsed      []agent.ToolCallSummary
	Charts         []json.RawMessage

	// Confirmation is set when the loop suspended on a mutating tool.
	Confirmation *agent.ConfirmationNeededEvent

	// Err is set when the exchange failed.
	Err error
}

// ToolsUsedEvent returns the tools_used payload.
func (r *Result) ToolsUsedEvent() []agent.ToolUsed {
	used := make([]agent.ToolUsed, 0, len(r.ToolsUsed))
	for _, t := range r.ToolsUsed {
		used = append(used, agent.ToolUsed{Tool: t.Tool, Description: t.Description})
	}
	return used
}

// ErrorMessage is the client-facing text for Err.
func (r *Result) ErrorMessage() string {
	return ErrorMessage(r.Err)
}

// Terminal returns the event that ends the stream.
func (r *Result) Terminal() agent.Event {
	switch {
	case r.Err != nil:
		return agent.Event{Type: agent.EventError, Data: agent.ErrorEvent{
			Content:        r.ErrorMessage(),
			ConversationID: r.ConversationID,
		}}
	case r.Confirmation != nil:
		return agent.Event{Type: agent.EventConfirmationNeeded, Data: r.Confirmation}
	default:
		return agent.Event{Type: agent.EventDone, Data: agent.DoneEvent{ConversationID: r.ConversationID}}
	}
}

// ErrorMessage maps a fatal loop error to the text shown to the user.
func ErrorMessage(err error) string {
	var boundErr *BoundError
	var transportErr *domain.TransportError
	switch {
	case errors.As(err, &boundErr):
		return fmt.Sprintf("Tool loop limit reached (%d rounds) without a final answer.", boundErr.Rounds)
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Please try again."
	case errors.As(err, &transportErr):
		return fmt.Sprintf("AI service error: %v", transportErr.Err)
	case errors.Is(err, domain.ErrToolCrashed):
		return "A tool failed unexpectedly. Please try again."
	default:
		return fmt.Sprintf("An error occurred: %v", err)
	}
}

// BoundError reports that the model kept requesting tools for Rounds rounds.
type BoundError struct {
	Rounds int
}

func (e *BoundError) Error() string {
	return fmt.Sprintf("%v after %d rounds", domain.ErrLoopBoundExceeded, e.Rounds)
}

func (e *BoundError) Is(target error) bool {
	return target == domain.ErrLoopBoundExceeded
}

// FinishFunc runs after the exchange ends and before the terminal event is
// sent. It receives a context that survives client disconnects.
type FinishFunc func(ctx context.Context, result *Result)

// Stream starts the exchange in a goroutine. The returned channel carries
// the events and is closed after the terminal event; only the loop closes it.
// Cancelling ctx stops the exchange; no terminal event is guaranteed then.
func (l *Loop) Stream(ctx context.Context, req *Request, finish FinishFunc) <-chan agent.Event {
	events := make(chan agent.Event, eventBufferSize)

	go func() {
		defer close(events)

		runCtx, cancel := context.WithTimeout(ctx, l.config.Timeout)
		defer cancel()

		e := &emitter{ctx: ctx, events: events}
		result := l.run(runCtx, req, e)

		if finish != nil {
			finish(context.WithoutCancel(ctx), result)
		}
		e.send(result.Terminal())
	}()

	return events
}

// emitter sends events unless the consumer is gone.
type emitter struct {
	ctx    context.Context
	events chan<- agent.Event
}

func (e *emitter) send(ev agent.Event) bool {
	select {
	case e.events <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// exchange tracks one run. tools_used and charts are each sent at most once,
// right before the final answer or the terminal event.
type exchange struct {
	result        *Result
	toolsUsedSent bool
	chartsSent    bool
	emit          *emitter
}

// flushSummary sends tools_used and charts if they have not been sent yet.
func (x *exchange) flushSummary() {
	if !x.toolsUsedSent && len(x.result.ToolsUsed) > 0 {
		x.emit.send(agent.Event{Type: agent.EventToolsUsed, Data: x.result.ToolsUsedEvent()})
		x.toolsUsedSent = true
	}
	if !x.chartsSent && len(x.result.Charts) > 0 {
		x.emit.send(agent.Event{Type: agent.EventCharts, Data: x.result.Charts})
		x.chartsSent = true
	}
}

// answer emits the final round's text after the tool summary.
func (x *exchange) answer(r *round) {
	x.flushSummary()
	for _, delta := range r.deltas {
		x.emit.send(agent.Event{Type: agent.EventTextDelta, Data: agent.TextDeltaEvent{Text: delta}})
	}
	x.result.Text = r.text
}

// round is one model response. Its text is held back until the response
// ends: text from a round that calls tools only goes into the transcript.
type round struct {
	text   string
	deltas []string
	calls  []agent.ToolCall
}

func (l *Loop) run(ctx context.Context, req *Request, emit *emitter) *Result {
	x := &exchange{
		result: &Result{ConversationID: req.ConversationID, UserMessage: req.UserMessage},
		emit:   emit,
	}
	defer x.flushSummary()

	messages := append([]agent.Message(nil), req.Transcript...)
	definitions := l.registry.Definitions()

	for round := 1; round <= l.config.MaxRounds; round++ {
		r, err := l.generate(ctx, req.System, messages, definitions)
		if err != nil {
			x.result.Err = err
			return x.result
		}

		if len(r.calls) == 0 {
			x.answer(r)
			return x.result
		}

		calls := r.calls
		assistant := agent.Message{Role: agent.MessageRoleAssistant, Content: r.text, ToolCalls: calls}
		var toolMessages []agent.Message

		for i, call := range calls {
			emit.send(agent.Event{Type: agent.EventToolStart, Data: agent.ToolStartEvent{Tool: call.Name}})

			if tool := l.registry.Get(call.Name); tool != nil && tool.Mutating() {
				if toolErr := l.registry.ValidateArgs(call.Name, call.Arguments); toolErr != nil {
					toolMessages = append(toolMessages, toolMessage(call, tools.ToolResult{Error: toolErr, IsError: true}))
					continue
				}

				// Calls after the suspending one are dropped from the transcript.
				assistant.ToolCalls = calls[:i+1]
				resume := make([]agent.Message, 0, len(messages)+1+len(toolMessages))
				resume = append(resume, messages...)
				resume = append(resume, assistant)
				resume = append(resume, toolMessages...)
				if err := l.suspend(ctx, req, call, resume, x.result); err != nil {
					x.result.Err = err
				}
				return x.result
			}

			result, err := l.execute(ctx, call)
			if err != nil {
				x.result.Err = err
				return x.result
			}

			x.result.ToolsUsed = append(x.result.ToolsUsed, agent.ToolCallSummary{
				Tool:        call.Name,
				Description: tools.SummaryDescription(call),
				Arguments:   call.Arguments,
			})
			if result.Chart && !result.IsError {
				if chart, err := json.Marshal(result.Result); err == nil {
					x.result.Charts = append(x.result.Charts, chart)
				}
			}
			toolMessages = append(toolMessages, toolMessage(call, result))
		}

		messages = append(messages, assistant)
		messages = append(messages, toolMessages...)
	}

	l.logger.Warn("tool loop bound exceeded",
		"conversation_id", req.ConversationID,
		"rounds", l.config.MaxRounds,
	)
	x.result.Err = &BoundError{Rounds: l.config.MaxRounds}
	return x.result
}

// generate runs one model call and collects its response.
func (l *Loop) generate(ctx context.Context, system string, messages []agent.Message, definitions []agent.ToolDefinition) (*round, error) {
	chunks, err := l.generator.Generate(ctx, &agentsvc.GenerateRequest{
		Model:    l.config.Model,
		System:   system,
		Messages: messages,
		Tools:    definitions,
	})
	if err != nil {
		return nil, asTransportError("generate", err)
	}

	r := &round{}
	var text strings.Builder
	for {
		select {
		case <-ctx.Done():
			return nil, asTransportError("stream", ctx.Err())
		case chunk, ok := <-chunks:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil, asTransportError("stream", err)
				}
				r.text = text.String()
				return r, nil
			}
			if chunk.Err != nil {
				return nil, asTransportError("stream", chunk.Err)
			}
			if chunk.TextDelta != "" {
				text.WriteString(chunk.TextDelta)
				r.deltas = append(r.deltas, chunk.TextDelta)
			}
			if chunk.ToolCall != nil {
				r.calls = append(r.calls, *chunk.ToolCall)
			}
		}
	}
}

func (l *Loop) execute(ctx context.Context, call agent.ToolCall) (tools.ToolResult, error) {
	start := time.Now()
	result, err := l.registry.Execute(ctx, call)
	if err != nil {
		l.logger.Error("tool crashed", "tool", call.Name, "error", err)
		return result, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, asTransportError("tool "+call.Name, ctxErr)
	}

	attrs := []any{
		"tool", call.Name,
		"classification", agent.ReadOnly,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if result.IsError {
		attrs = append(attrs, "error_code", result.Error.Code, "error", result.Error.Message)
		if result.Error.Code == domain.ToolErrGuardrail {
			l.logger.Warn("query rejected by guardrail", attrs...)
		} else {
			l.logger.Info("tool returned error", attrs...)
		}
	} else {
		l.logger.Info("tool executed", attrs...)
	}
	return result, nil
}

// suspend stores the mutating call and prepares the confirmation event.
func (l *Loop) suspend(ctx context.Context, req *Request, call agent.ToolCall, transcript []agent.Message, result *Result) error {
	action := &agent.PendingAction{
		ToolName:  call.Name,
		Arguments: call.Arguments,
		Resume: agent.ResumeContext{
			ConversationID: req.ConversationID,
			UserMessage:    req.UserMessage,
			System:         req.System,
			Transcript:     transcript,
			ToolCallID:     call.ID,
			ToolsUsed:      result.ToolsUsed,
		},
	}
	stateID, err := l.pending.Create(ctx, action)
	if err != nil {
		return fmt.Errorf("failed to store pending action: %w", err)
	}

	l.logger.Info("awaiting confirmation",
		"conversation_id", req.ConversationID,
		"tool", call.Name,
		"classification", agent.Mutating,
		"state_id", stateID,
	)

	result.Confirmation = &agent.ConfirmationNeededEvent{
		StateID:           stateID,
		Tool:              call.Name,
		ActionDescription: l.registry.Describe(call.Name, call.Arguments),
		ActionDetails:     call.Arguments,
		ConversationID:    req.ConversationID,
	}
	return nil
}

// Complete runs a single model call without tool execution and returns its
// text. Used to resume an exchange after a confirmed action.
func (l *Loop) Complete(ctx context.Context, system string, transcript []agent.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	chunks, err := l.generator.Generate(ctx, &agentsvc.GenerateRequest{
		Model:    l.config.Model,
		System:   system,
		Messages: transcript,
		Tools:    l.registry.Definitions(),
	})
	if err != nil {
		return "", asTransportError("generate", err)
	}

	var text strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", asTransportError("stream", ctx.Err())
		case chunk, ok := <-chunks:
			if !ok {
				if err := ctx.Err(); err != nil {
					return "", asTransportError("stream", err)
				}
				return text.String(), nil
			}
			if chunk.Err != nil {
				return "", asTransportError("stream", chunk.Err)
			}
			text.WriteString(chunk.TextDelta)
			if chunk.ToolCall != nil {
				l.logger.Debug("ignoring tool call after confirmation", "tool", chunk.ToolCall.Name)
			}
		}
	}
}

func toolMessage(call agent.ToolCall, result tools.ToolResult) agent.Message {
	return agent.Message{
		Role:       agent.MessageRoleTool,
		Content:    result.Content(),
		ToolCallID: call.ID,
	}
}

func asTransportError(op string, err error) error {
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	return &domain.TransportError{Op: op, Err: err}
}
