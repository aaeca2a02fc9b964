package shared

import (
	"time"

	"advisor/internal/tools/middleware"
	"advisor/pkg/logger"
)

// ToolBuilder provides a fluent API for creating tools with middleware
type ToolBuilder[A any] struct {
	name        string
	description string
	fn          Func[A]
	log         *logger.Logger

	withRetry   bool
	retryConfig middleware.Retry

	withTimeout   bool
	timeoutConfig middleware.Timeout

	withStats bool
}

// NewToolBuilder creates a builder for a tool
func NewToolBuilder[A any](name, description string, fn Func[A], deps Deps) *ToolBuilder[A] {
	log := deps.Log
	if log == nil {
		log = logger.Get()
	}
	return &ToolBuilder[A]{
		name:          name,
		description:   description,
		fn:            fn,
		log:           log.With("component", "tool", "tool", name),
		retryConfig:   middleware.Retry{Attempts: 3, Backoff: 500 * time.Millisecond},
		timeoutConfig: middleware.Timeout{Timeout: 30 * time.Second},
	}
}

// WithRetry enables retry middleware
func (b *ToolBuilder[A]) WithRetry(attempts int, backoff time.Duration) *ToolBuilder[A] {
	b.withRetry = true
	b.retryConfig = middleware.Retry{Attempts: attempts, Backoff: backoff}
	return b
}

// WithTimeout enables timeout middleware
func (b *ToolBuilder[A]) WithTimeout(timeout time.Duration) *ToolBuilder[A] {
	b.withTimeout = true
	b.timeoutConfig = middleware.Timeout{Timeout: timeout}
	return b
}

// WithStats enables prometheus metrics and debug logging for every call
func (b *ToolBuilder[A]) WithStats() *ToolBuilder[A] {
	b.withStats = true
	return b
}

// Build creates the tool with configured middleware applied.
// Order, innermost first: retry, timeout, stats.
func (b *ToolBuilder[A]) Build() *FunctionTool[A] {
	fn := middleware.Func[A](b.fn)

	if b.withRetry {
		fn = middleware.WithRetry(b.retryConfig, fn)
	}
	if b.withTimeout {
		fn = middleware.WithTimeout(b.timeoutConfig, fn)
	}
	if b.withStats {
		fn = middleware.WithStats(b.name, b.log, fn)
	}

	return New(b.name, b.description, Func[A](fn))
}
