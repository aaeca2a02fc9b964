package calculator

import (
	"context"

	"advisor/internal/calc"
	"advisor/internal/tools/shared"
)

const (
	// Name is the function name the model calls. Providers reject names with spaces.
	Name = "calculator"
	// DisplayName is the human-facing tool name.
	DisplayName = "Calculator tool"
	Description = "Useful to perform any mathematical calculations, like sum, minus, " +
		"multiplication, division, etc. " +
		"The input to this tool should be a mathematical expression, " +
		"a couple examples are `200*7` or `5000/2*10`."
)

// Args is the calculator's input.
type Args struct {
	Operation string `json:"operation" jsonschema:"the mathematical expression to evaluate, for example 200*7 or 5000/2*10"`
}

// Calculator evaluates arithmetic expressions for agents.
type Calculator struct {
	tool *shared.FunctionTool[Args]
}

// New builds the calculator tool. Evaluation is CPU-bound and never retried.
func New(deps shared.Deps) *Calculator {
	c := &Calculator{}
	c.tool = shared.NewToolBuilder(Name, Description, c.execute, deps).
		WithStats().
		Build()
	return c
}

// Calculate evaluates expression synchronously.
func (c *Calculator) Calculate(expression string) (calc.Number, error) {
	return calc.Evaluate(expression)
}

// Execute is the context-aware form of Calculate. It only adds an early
// return for a context that is already done.
func (c *Calculator) Execute(ctx context.Context, args map[string]any) (map[string]any, error) {
	return c.tool.Execute(ctx, args)
}

func (c *Calculator) execute(ctx context.Context, args Args) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := c.Calculate(args.Operation)
	if err != nil {
		// the message goes back to the model verbatim so it can fix the expression
		return nil, err
	}

	return map[string]any{
		"result":     result,
		"expression": args.Operation,
	}, nil
}

// Tool exposes the calculator to the registry.
func (c *Calculator) Tool() shared.Tool {
	return c.tool
}
