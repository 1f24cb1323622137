package tools

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/miguelbenajes/HoldedConnector/internal/domain"
)

// Executor runs one tool. args is the raw JSON object issued by the model.
// The returned value must be JSON-serializable. Implementations must be safe
// for concurrent use and respect context cancellation.
type Executor interface {
	Execute(ctx context.Context, args json.RawMessage) (interface{}, error)
}

// ArgsValidator checks arguments without running the tool.
type ArgsValidator interface {
	ValidateArgs(args json.RawMessage) error
}

// Describer produces a one-line description of a call for the confirmation prompt.
type Describer interface {
	Describe(args json.RawMessage) (string, error)
}

// Args is implemented by every typed argument struct.
type Args interface {
	Validate() error
}

// describedArgs is implemented by argument structs of mutating tools.
type describedArgs interface {
	Describe() string
}

// typedExecutor decodes the raw arguments into A, validates them, and hands
// them to run. Each tool gets its own argument type; dispatch never inspects
// names or uses reflection beyond JSON decoding.
type typedExecutor[A any, P interface {
	*A
	Args
}] struct {
	run func(ctx context.Context, args P) (interface{}, error)
}

// Typed wraps a function over a typed argument struct as an Executor.
func Typed[A any, P interface {
	*A
	Args
}](run func(ctx context.Context, args P) (interface{}, error)) Executor {
	return &typedExecutor[A, P]{run: run}
}

func (t *typedExecutor[A, P]) decode(raw json.RawMessage) (P, error) {
	var a A
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &a); err != nil {
			return nil, domain.NewToolError(domain.ToolErrValidation, "invalid arguments: %v", err)
		}
	}

	p := P(&a)
	if err := p.Validate(); err != nil {
		return nil, domain.NewToolError(domain.ToolErrValidation, "invalid arguments: %v", err)
	}
	return p, nil
}

func (t *typedExecutor[A, P]) Execute(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	args, err := t.decode(raw)
	if err != nil {
		return nil, err
	}
	return t.run(ctx, args)
}

func (t *typedExecutor[A, P]) ValidateArgs(raw json.RawMessage) error {
	_, err := t.decode(raw)
	return err
}

func (t *typedExecutor[A, P]) Describe(raw json.RawMessage) (string, error) {
	args, err := t.decode(raw)
	if err != nil {
		return "", err
	}
	if d, ok := any(args).(describedArgs); ok {
		return d.Describe(), nil
	}
	return "", nil
}
