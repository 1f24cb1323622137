package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
)

// Tool is one entry of the dispatch table.
type Tool struct {
	Definition agent.ToolDefinition
	Chart      bool // results feed the chart side channel
	Executor   Executor
}

// Mutating reports whether the tool needs user confirmation.
func (t *Tool) Mutating() bool {
	return t.Definition.Classification == agent.Mutating
}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	ID      string            `json:"id"`       // tool call id (matches ToolCall.ID)
	Name    string            `json:"name"`     // tool name
	Result  interface{}       `json:"result"`   // execution result (nil if error)
	Error   *domain.ToolError `json:"error"`    // execution error (nil if success)
	IsError bool              `json:"is_error"` // whether execution failed
	Chart   bool              `json:"-"`        // result is chart data
}

// Content serializes the result for the model.
func (r ToolResult) Content() string {
	var payload interface{} = r.Result
	if r.IsError {
		payload = map[string]interface{}{"error": r.Error}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data, _ = json.Marshal(map[string]interface{}{
			"error": domain.NewToolError(domain.ToolErrExecutor, "result not serializable: %v", err),
		})
	}
	return string(data)
}

// Registry maps tool names to their definitions and executors.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool. A tool with the same name is replaced in place.
func (r *Registry) Register(tool *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Definition.Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Get retrieves a tool by name. Returns nil if it is not registered.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions returns the catalog advertised to the model, in registration order.
func (r *Registry) Definitions() []agent.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]agent.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// ValidateArgs decodes and validates arguments for name without executing.
func (r *Registry) ValidateArgs(name string, args json.RawMessage) *domain.ToolError {
	tool := r.Get(name)
	if tool == nil {
		return domain.NewToolError(domain.ToolErrUnknown, "tool not found: %s", name)
	}
	v, ok := tool.Executor.(ArgsValidator)
	if !ok {
		return nil
	}
	if err := v.ValidateArgs(args); err != nil {
		return toToolError(err)
	}
	return nil
}

// Describe returns the confirmation text for a call. Falls back to
// "Execute <name>" when the tool has no description of its own.
func (r *Registry) Describe(name string, args json.RawMessage) string {
	fallback := fmt.Sprintf("Execute %s", name)
	tool := r.Get(name)
	if tool == nil {
		return fallback
	}
	d, ok := tool.Executor.(Describer)
	if !ok {
		return fallback
	}
	desc, err := d.Describe(args)
	if err != nil || desc == "" {
		return fallback
	}
	return desc
}

// Execute runs a single tool. Tool failures are returned inside the result;
// the error is non-nil only when the executor panicked.
func (r *Registry) Execute(ctx context.Context, call agent.ToolCall) (result ToolResult, err error) {
	result = ToolResult{ID: call.ID, Name: call.Name}

	tool := r.Get(call.Name)
	if tool == nil {
		result.Error = domain.NewToolError(domain.ToolErrUnknown, "tool not found: %s", call.Name)
		result.IsError = true
		return result, nil
	}
	result.Chart = tool.Chart

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %s: %v", domain.ErrToolCrashed, call.Name, p)
		}
	}()

	value, execErr := tool.Executor.Execute(ctx, call.Arguments)
	if execErr != nil {
		result.Error = toToolError(execErr)
		result.IsError = true
		return result, nil
	}

	result.Result = value
	return result, nil
}

// toToolError maps executor errors onto the stable tool error codes.
func toToolError(err error) *domain.ToolError {
	var toolErr *domain.ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}

	var convertible interface{ ToolError() *domain.ToolError }
	if errors.As(err, &convertible) {
		return convertible.ToolError()
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &domain.ToolError{Code: domain.ToolErrNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrValidation):
		return &domain.ToolError{Code: domain.ToolErrValidation, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &domain.ToolError{Code: domain.ToolErrExecutor, Message: "tool execution timed out or was cancelled"}
	default:
		return &domain.ToolError{Code: domain.ToolErrExecutor, Message: err.Error()}
	}
}

// SummaryDescription is the description shown in tools_used: the call's
// "explanation" argument when present, else the tool name.
func SummaryDescription(call agent.ToolCall) string {
	var args struct {
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal(call.Arguments, &args); err == nil && args.Explanation != "" {
		return args.Explanation
	}
	return call.Name
}
