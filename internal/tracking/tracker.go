// Package tracking publishes one record per crew run so runs can be audited
// and analysed outside the request path.
package tracking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"advisor/internal/adapters/kafka"
	"advisor/internal/agents"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

// Run statuses
const (
	StatusSuccess            = "success"
	StatusGuardrailViolation = "guardrail_violation"
	StatusTimeout            = "timeout_error"
	StatusError              = "processing_error"
)

// StatusOf maps a run error to its status
func StatusOf(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, errors.ErrGuardrailViolation):
		return StatusGuardrailViolation
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusError
	}
}

// TaskSummary describes one task without its full output.
type TaskSummary struct {
	Name        string            `json:"name"`
	Agent       agents.AgentType  `json:"agent"`
	OutputBytes int               `json:"output_bytes"`
	ToolCalls   int               `json:"tool_calls"`
	Usage       agents.TokenUsage `json:"usage"`
	DurationMs  int64             `json:"duration_ms"`
}

// RunEvent is the published record. The query itself is never published, only its hash.
type RunEvent struct {
	RequestID  string            `json:"request_id"`
	QueryHash  string            `json:"query_hash"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	DurationMs int64             `json:"duration_ms"`
	TokenUsage agents.TokenUsage `json:"token_usage"`
	Tasks      []TaskSummary     `json:"tasks,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewRunEvent builds a record from a run's outcome. out may be nil.
func NewRunEvent(requestID, query, status string, duration time.Duration, out *agents.CrewOutput, runErr error) RunEvent {
	ev := RunEvent{
		RequestID:  requestID,
		QueryHash:  HashQuery(query),
		Status:     status,
		DurationMs: duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if runErr != nil {
		ev.Error = runErr.Error()
	}
	if out != nil {
		ev.TokenUsage = out.TokenUsage
		for _, task := range out.Tasks {
			ev.Tasks = append(ev.Tasks, TaskSummary{
				Name:        task.Name,
				Agent:       task.Agent,
				OutputBytes: len(task.Raw),
				ToolCalls:   task.ToolCalls,
				Usage:       task.Usage,
				DurationMs:  task.Duration.Milliseconds(),
			})
		}
	}
	return ev
}

// HashQuery returns the hex SHA-256 of the query
func HashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

// Publisher is satisfied by *kafka.Producer
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// DefaultPublishTimeout bounds a single run event publish
const DefaultPublishTimeout = 5 * time.Second

// Tracker publishes run events in the background. A nil publisher makes it a no-op.
type Tracker struct {
	publisher Publisher
	topic     string
	timeout   time.Duration
	wg        sync.WaitGroup
	log       *logger.Logger
}

// NewTracker creates a tracker. topic defaults to kafka.TopicCrewRuns.
func NewTracker(publisher Publisher, topic string) *Tracker {
	if topic == "" {
		topic = kafka.TopicCrewRuns
	}
	return &Tracker{
		publisher: publisher,
		topic:     topic,
		timeout:   DefaultPublishTimeout,
		log:       logger.Get().With("component", "run_tracker"),
	}
}

// WithPublishTimeout overrides DefaultPublishTimeout
func (t *Tracker) WithPublishTimeout(d time.Duration) *Tracker {
	if d > 0 {
		t.timeout = d
	}
	return t
}

// Enabled reports whether events are published anywhere
func (t *Tracker) Enabled() bool {
	return t != nil && t.publisher != nil
}

// TrackRun publishes ev from a background goroutine and returns immediately.
// Cancellation of ctx does not abort the publish; the publish timeout does.
// Failures are logged and never returned.
func (t *Tracker) TrackRun(ctx context.Context, ev RunEvent) {
	if !t.Enabled() {
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
		defer cancel()

		if err := t.publisher.Publish(pubCtx, t.topic, ev.RequestID, ev); err != nil {
			t.log.Warnw("Failed to track crew run", "request_id", ev.RequestID, "error", err)
		}
	}()
}

// Flush waits for in-flight publishes until ctx is done
func (t *Tracker) Flush(ctx context.Context) error {
	if t == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "flush run events")
	}
}

// Consumer is satisfied by *kafka.Consumer
type Consumer interface {
	Consume(ctx context.Context, handler kafka.MessageHandler) error
}

// Watch decodes run events from consumer and hands them to fn until ctx is done.
func Watch(ctx context.Context, consumer Consumer, fn func(RunEvent)) error {
	return consumer.Consume(ctx, func(_ context.Context, msg kafkago.Message) error {
		var ev RunEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return errors.Wrapf(errors.Join(errors.ErrInvalidInput, err), "decode run event at offset %d", msg.Offset)
		}
		fn(ev)
		return nil
	})
}
