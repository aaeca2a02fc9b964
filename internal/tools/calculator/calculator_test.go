package calculator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"advisor/internal/calc"
	"advisor/internal/tools/shared"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

func newTestCalculator() *Calculator {
	return New(shared.Deps{Log: logger.New(zap.NewNop())})
}

func TestCalculate(t *testing.T) {
	c := newTestCalculator()

	tests := map[string]string{
		"2+2":      "4",
		"10/2*5":   "25.0",
		"(3+7)*2":  "20",
		"100-25*2": "50",
		"2**8":     "256",
		"10%3":     "1",
	}
	for expr, want := range tests {
		got, err := c.Calculate(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, want, got.String(), expr)
	}
}

func TestExecute(t *testing.T) {
	c := newTestCalculator()

	out, err := c.Execute(context.Background(), map[string]any{"operation": "5000/2*10"})
	require.NoError(t, err)

	result, ok := out["result"].(calc.Number)
	require.True(t, ok)
	assert.Equal(t, "25000.0", result.String())
	assert.Equal(t, "5000/2*10", out["expression"])
}

func TestExecuteReturnsEvaluationError(t *testing.T) {
	c := newTestCalculator()

	_, err := c.Execute(context.Background(), map[string]any{"operation": "1/0"})
	require.Error(t, err)

	var evalErr *calc.EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, evalErr.Error(), err.Error())
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.True(t, errors.Is(err, errors.ErrToolFailed))
}

func TestExecuteRejectsDisallowedInput(t *testing.T) {
	c := newTestCalculator()

	_, err := c.Execute(context.Background(), map[string]any{"operation": "__import__('os')"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid characters")
}

func TestExecuteBadArgumentType(t *testing.T) {
	c := newTestCalculator()

	_, err := c.Execute(context.Background(), map[string]any{"operation": 42})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestExecuteCancelledContext(t *testing.T) {
	c := newTestCalculator()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Execute(ctx, map[string]any{"operation": "2+2"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToolMetadata(t *testing.T) {
	c := newTestCalculator()

	assert.Equal(t, "calculator", c.Tool().Name())
	assert.Contains(t, c.Tool().Description(), "`200*7` or `5000/2*10`")

	adkTool, err := c.Tool().ADK()
	require.NoError(t, err)
	assert.Equal(t, "calculator", adkTool.Name())
}
