package middleware

import (
	"context"
	"time"
)

// Timeout enforces per-call deadlines for tool execution.
type Timeout struct {
	Timeout time.Duration
}

// WithTimeout sets a deadline on fn if configured.
func WithTimeout[A any](m Timeout, fn Func[A]) Func[A] {
	if m.Timeout <= 0 {
		return fn
	}

	return func(ctx context.Context, args A) (map[string]any, error) {
		ctxWithTimeout, cancel := context.WithTimeout(ctx, m.Timeout)
		defer cancel()
		return fn(ctxWithTimeout, args)
	}
}
