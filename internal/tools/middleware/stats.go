package middleware

import (
	"context"
	"time"

	"advisor/internal/metrics"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

// WithStats records latency and outcome of every call in prometheus and logs it.
func WithStats[A any](name string, log *logger.Logger, fn Func[A]) Func[A] {
	return func(ctx context.Context, args A) (map[string]any, error) {
		start := time.Now()
		result, err := fn(ctx, args)
		duration := time.Since(start)

		metrics.RecordToolExecution(name, duration, err)

		fields := []interface{}{"duration", duration}
		if named, ok := ctx.(interface{ AgentName() string }); ok {
			fields = append(fields, "agent", named.AgentName())
		}
		if id, ok := errors.RequestIDFrom(ctx); ok {
			fields = append(fields, "request_id", id)
		}
		if err != nil {
			log.Warnw("Tool call failed", append(fields, "error", err)...)
			return result, &toolError{err: err}
		}

		log.Debugw("Tool call succeeded", fields...)
		return result, nil
	}
}

// toolError marks a failure as ErrToolFailed. Its message is the cause's,
// unchanged, because the calling model reads it.
type toolError struct {
	err error
}

func (e *toolError) Error() string {
	return e.err.Error()
}

func (e *toolError) Unwrap() []error {
	return []error{errors.ErrToolFailed, e.err}
}
