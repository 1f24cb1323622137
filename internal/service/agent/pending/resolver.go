package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/repositories"
	"github.com/miguelbenajes/HoldedConnector/internal/service/agent/tools"
)

// ToolExecutor runs a tool call. Satisfied by *tools.Registry.
type ToolExecutor interface {
	Execute(ctx context.Context, call agent.ToolCall) (tools.ToolResult, error)
}

// Resolver applies the user's decision to a pending action.
type Resolver struct {
	store    repositories.PendingActionStore
	executor ToolExecutor
	logger   *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(store repositories.PendingActionStore, executor ToolExecutor, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, executor: executor, logger: logger}
}

// Resolve consumes the action and, when confirmed, executes it with
// overrides merged over the stored arguments. The action is deleted before
// the executor runs, so concurrent or repeated calls execute it at most once.
// Unknown, expired and already resolved ids return domain.ErrActionExpired.
func (r *Resolver) Resolve(ctx context.Context, stateID string, confirmed bool, overrides map[string]interface{}) (*agent.Outcome, error) {
	action, err := r.store.Take(ctx, stateID)
	if err != nil {
		return nil, err
	}

	outcome := &agent.Outcome{
		StateID:   action.StateID,
		ToolName:  action.ToolName,
		Confirmed: confirmed,
		Resume:    action.Resume,
	}
	if !confirmed {
		r.logger.Info("pending action rejected", "state_id", stateID, "tool", action.ToolName)
		return outcome, nil
	}

	args, err := MergeArguments(action.Arguments, overrides)
	if err != nil {
		outcome.ToolErr = domain.NewToolError(domain.ToolErrValidation, "invalid override arguments: %v", err)
		return outcome, nil
	}

	result, err := r.executor.Execute(ctx, agent.ToolCall{
		ID:        action.Resume.ToolCallID,
		Name:      action.ToolName,
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("pending action executed",
		"state_id", stateID,
		"tool", action.ToolName,
		"is_error", result.IsError,
	)
	if result.IsError {
		outcome.ToolErr = result.Error
		return outcome, nil
	}
	outcome.Result = result.Result
	return outcome, nil
}

// MergeArguments overlays overrides on the stored JSON object. Override keys win.
func MergeArguments(stored json.RawMessage, overrides map[string]interface{}) (json.RawMessage, error) {
	if len(overrides) == 0 {
		return stored, nil
	}

	merged := make(map[string]interface{})
	if len(stored) > 0 {
		if err := json.Unmarshal(stored, &merged); err != nil {
			return nil, fmt.Errorf("stored arguments are not an object: %w", err)
		}
		if merged == nil {
			merged = make(map[string]interface{})
		}
	}
	for k, v := range overrides {
		merged[k] = v
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// OutcomeContent is the tool message fed back to the model after resolution.
func OutcomeContent(o *agent.Outcome) string {
	result := tools.ToolResult{ID: o.Resume.ToolCallID, Name: o.ToolName, Result: o.Result}
	if o.ToolErr != nil {
		var toolErr *domain.ToolError
		if !errors.As(o.ToolErr, &toolErr) {
			toolErr = domain.NewToolError(domain.ToolErrExecutor, "%v", o.ToolErr)
		}
		result.Error = toolErr
		result.IsError = true
	}
	return result.Content()
}
