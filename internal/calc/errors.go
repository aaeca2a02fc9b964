package calc

import (
	"fmt"

	"advisor/pkg/errors"
)

// EvaluationError is the only error kind returned by Evaluate and Parse.
// Lower-level failures (parse errors, arithmetic faults) are folded into it.
type EvaluationError struct {
	Expression string
	Message    string
	Err        error
}

func (e *EvaluationError) Error() string {
	return "calculation error: " + e.Message
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Is makes every evaluation failure match errors.ErrInvalidInput.
func (e *EvaluationError) Is(target error) bool {
	return target == errors.ErrInvalidInput
}

func newError(expr string, format string, args ...any) *EvaluationError {
	return &EvaluationError{Expression: expr, Message: fmt.Sprintf(format, args...)}
}

func wrapError(expr string, err error, format string, args ...any) *EvaluationError {
	return &EvaluationError{Expression: expr, Message: fmt.Sprintf(format, args...), Err: err}
}
