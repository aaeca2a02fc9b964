package middleware

import (
	"context"
	"time"

	"advisor/pkg/errors"
)

// Func is the handler shape every middleware wraps.
type Func[A any] func(ctx context.Context, args A) (map[string]any, error)

// Retry retries tool execution on error with optional backoff.
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

// WithRetry adds retry semantics to fn. Invalid input is never retried and
// the error from the last attempt is returned.
func WithRetry[A any](m Retry, fn Func[A]) Func[A] {
	attempts := m.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	return func(ctx context.Context, args A) (map[string]any, error) {
		var result map[string]any
		var err error

		for i := 0; i < attempts; i++ {
			result, err = fn(ctx, args)
			if err == nil {
				return result, nil
			}
			if errors.Is(err, errors.ErrInvalidInput) || ctx.Err() != nil {
				return nil, err
			}

			if m.Backoff > 0 && i < attempts-1 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(m.Backoff * time.Duration(i+1)):
				}
			}
		}

		return result, err
	}
}
