package shared

import (
	"context"
	"encoding/json"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"advisor/pkg/errors"
)

// Tool represents a callable capability exposed to agents.
type Tool interface {
	// Name returns the function name sent to the model.
	Name() string
	// Description returns a short human-readable summary.
	Description() string
	// Execute runs the tool with loosely typed arguments, as decoded from a model function call.
	Execute(ctx context.Context, args map[string]any) (map[string]any, error)
	// ADK returns the tool in the form llmagent binds to an agent.
	ADK() (tool.Tool, error)
}

// Func is a tool handler with a typed argument struct. The ADK input schema
// is inferred from A, so field tags double as the parameter documentation.
type Func[A any] func(ctx context.Context, args A) (map[string]any, error)

// FunctionTool is a Tool backed by a typed handler function.
type FunctionTool[A any] struct {
	name        string
	description string
	fn          Func[A]
}

// New creates a function-backed Tool with no middleware.
func New[A any](name, description string, fn Func[A]) *FunctionTool[A] {
	return &FunctionTool[A]{
		name:        name,
		description: description,
		fn:          fn,
	}
}

func (t *FunctionTool[A]) Name() string { return t.name }

func (t *FunctionTool[A]) Description() string { return t.description }

// Call runs the handler with already typed arguments.
func (t *FunctionTool[A]) Call(ctx context.Context, args A) (map[string]any, error) {
	if t.fn == nil {
		return nil, errors.Newf("%s: tool handler is not defined", t.name)
	}
	return t.fn(ctx, args)
}

// Execute decodes args into A and runs the handler.
func (t *FunctionTool[A]) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	var typed A
	if err := DecodeArgs(args, &typed); err != nil {
		return nil, errors.Wrapf(err, "%s", t.name)
	}
	return t.Call(ctx, typed)
}

// ADK wraps the handler in an ADK function tool.
func (t *FunctionTool[A]) ADK() (tool.Tool, error) {
	adkTool, err := functiontool.New(
		functiontool.Config{
			Name:        t.name,
			Description: t.description,
		},
		func(ctx tool.Context, args A) (map[string]any, error) {
			return t.Call(ctx, args)
		})
	if err != nil {
		return nil, errors.Wrapf(err, "create adk tool %s", t.name)
	}
	return adkTool, nil
}

// DecodeArgs converts a generic argument map into a typed struct.
func DecodeArgs(args map[string]any, dest any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	return nil
}
