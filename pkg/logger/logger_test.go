package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"advisor/pkg/errors"
)

type recordingTracker struct {
	captured    []error
	tags        []map[string]string
	messages    []string
	levels      []errors.Level
	breadcrumbs []string
}

func (r *recordingTracker) CaptureError(_ context.Context, err error, tags map[string]string) error {
	r.captured = append(r.captured, err)
	r.tags = append(r.tags, tags)
	return nil
}

func (r *recordingTracker) CaptureMessage(_ context.Context, msg string, level errors.Level, _ map[string]string) error {
	r.messages = append(r.messages, msg)
	r.levels = append(r.levels, level)
	return nil
}

func (r *recordingTracker) AddBreadcrumb(_ context.Context, msg, category string, _ errors.Level, _ map[string]interface{}) {
	r.breadcrumbs = append(r.breadcrumbs, category+": "+msg)
}

func (r *recordingTracker) Flush(context.Context) error { return nil }

func TestLoggerForwardsErrorsToTracker(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracker := &recordingTracker{}

	l := New(zap.New(core))
	l.errorTracker = tracker

	child := l.Component("crew")
	child.Errorf("kickoff failed: %s", "boom")
	child.Info("not tracked")

	require.Len(t, tracker.captured, 1)
	assert.EqualError(t, tracker.captured[0], "kickoff failed: boom")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "crew", entries[0].ContextMap()["component"])
}

func TestWithFieldsKeepsTracker(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tracker := &recordingTracker{}

	l := New(zap.New(core))
	l.errorTracker = tracker

	l.WithFields(map[string]interface{}{"request_id": "abc"}).Error("failed")

	assert.Len(t, tracker.captured, 1)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "abc", logs.All()[0].ContextMap()["request_id"])
}

func TestErrorWithContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tracker := &recordingTracker{}

	l := New(zap.New(core))
	l.errorTracker = tracker

	l.ErrorWithContext(context.Background(), errors.ErrCrewFailed, map[string]string{"status": "processing_error"})

	require.Len(t, tracker.captured, 1)
	assert.ErrorIs(t, tracker.captured[0], errors.ErrCrewFailed)
	assert.Equal(t, "processing_error", tracker.tags[0]["status"])
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}

func TestMessageAndBreadcrumb(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tracker := &recordingTracker{}

	l := New(zap.New(core))
	l.errorTracker = tracker

	l.Message(context.Background(), errors.LevelWarning, "Guardrail violation", map[string]string{"keyword": "fraud"})
	l.Breadcrumb(context.Background(), "crew", "task finished", nil)

	assert.Equal(t, []string{"Guardrail violation"}, tracker.messages)
	assert.Equal(t, []errors.Level{errors.LevelWarning}, tracker.levels)
	assert.Equal(t, []string{"crew: task finished"}, tracker.breadcrumbs)
	assert.Empty(t, tracker.captured)

	// breadcrumbs are not logged
	assert.Equal(t, 1, logs.Len())

	// no tracker is a no-op
	assert.NotPanics(t, func() {
		New(zap.NewNop()).Breadcrumb(context.Background(), "crew", "x", nil)
	})
}

func TestInitFallsBackToInfoOnBadLevel(t *testing.T) {
	require.NoError(t, Init("not-a-level", "development"))
	assert.True(t, Get().Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, Get().Desugar().Core().Enabled(zapcore.DebugLevel))
}
