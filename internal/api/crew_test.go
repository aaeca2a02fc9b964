package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/internal/agents"
	"advisor/internal/api/health"
	"advisor/internal/guardrail"
	"advisor/internal/tracking"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

type fakeCrew struct {
	out   *agents.CrewOutput
	err   error
	block bool

	mu        sync.Mutex
	calls     int
	inputs    map[string]string
	requestID string
}

func (c *fakeCrew) Kickoff(ctx context.Context, inputs map[string]string) (*agents.CrewOutput, error) {
	c.mu.Lock()
	c.calls++
	c.inputs = inputs
	c.requestID, _ = errors.RequestIDFrom(ctx)
	c.mu.Unlock()

	if c.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return c.out, c.err
}

type recordingTracker struct {
	mu     sync.Mutex
	events []tracking.RunEvent
}

func (t *recordingTracker) TrackRun(_ context.Context, ev tracking.RunEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

func newTestRouter(crew Crew, tracker RunTracker, timeout time.Duration) http.Handler {
	guard := guardrail.New(guardrail.Config{ProhibitedKeywords: []string{"insider trading"}})
	return NewRouter(ServerConfig{ServiceName: "advisor", Version: "test", CrewTimeout: timeout}, Deps{
		Crew:      crew,
		Guardrail: guard,
		Tracker:   tracker,
	}, logger.Get())
}

func postRun(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/crew/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeRun(t *testing.T, rec *httptest.ResponseRecorder) RunResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRunCrew_Success(t *testing.T) {
	crew := &fakeCrew{out: &agents.CrewOutput{
		Raw:        "Hold SPY, add QQQ gradually.",
		TokenUsage: agents.TokenUsage{TotalTokens: 1234},
	}}
	tracker := &recordingTracker{}
	h := newTestRouter(crew, tracker, time.Second)

	rec := postRun(t, h, `{"user_query":"Compare SPY and QQQ for long-term growth"}`)
	resp := decodeRun(t, rec)

	_, err := uuid.Parse(resp.RequestID)
	assert.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "Hold SPY, add QQQ gradually.", *resp.Result)
	assert.Nil(t, resp.Error)
	assert.GreaterOrEqual(t, resp.ProcessingTimeMs, 0.0)
	assert.False(t, resp.Timestamp.IsZero())

	assert.Equal(t, 1, crew.calls)
	assert.Equal(t, map[string]string{"query": "Compare SPY and QQQ for long-term growth"}, crew.inputs)
	assert.Equal(t, resp.RequestID, crew.requestID)

	require.Len(t, tracker.events, 1)
	ev := tracker.events[0]
	assert.Equal(t, tracking.StatusSuccess, ev.Status)
	assert.Equal(t, resp.RequestID, ev.RequestID)
	assert.Equal(t, tracking.HashQuery("Compare SPY and QQQ for long-term growth"), ev.QueryHash)
	assert.Equal(t, int64(1234), ev.TokenUsage.TotalTokens)

	// error is serialised as null on success
	assert.Contains(t, rec.Body.String(), `"error":null`)
}

func TestRunCrew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		details string
	}{
		{name: "too short", body: `{"user_query":"hi"}`, details: "at least 3"},
		{name: "too long", body: `{"user_query":"` + strings.Repeat("a", 1001) + `"}`, details: "at most 1000"},
		{name: "blank", body: `{"user_query":"     "}`, details: "cannot be empty"},
		{name: "missing field", body: `{"query":"Compare SPY and QQQ"}`, details: "field required"},
		{name: "not a string", body: `{"user_query":42}`, details: "valid string"},
		{name: "malformed JSON", body: `{"user_query":`, details: "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crew := &fakeCrew{out: &agents.CrewOutput{Raw: "x"}}
			rec := postRun(t, newTestRouter(crew, nil, time.Second), tt.body)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			var body ValidationErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "Validation error", body.Error)
			assert.Contains(t, body.Details, tt.details)
			assert.Zero(t, crew.calls)
		})
	}
}

func TestRunCrew_LengthCountsCharacters(t *testing.T) {
	crew := &fakeCrew{out: &agents.CrewOutput{Raw: "ok"}}
	h := newTestRouter(crew, nil, time.Second)

	// Three runes, nine bytes
	resp := decodeRun(t, postRun(t, h, `{"user_query":"日本株"}`))
	assert.Nil(t, resp.Error)

	rec := postRun(t, h, `{"user_query":"`+strings.Repeat("é", 1000)+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunCrew_GuardrailViolation(t *testing.T) {
	crew := &fakeCrew{out: &agents.CrewOutput{Raw: "x"}}
	tracker := &recordingTracker{}
	h := newTestRouter(crew, tracker, time.Second)

	resp := decodeRun(t, postRun(t, h, `{"user_query":"How can I profit from Insider Trading on TSLA?"}`))

	require.NotNil(t, resp.Error)
	assert.Equal(t, "guardrail_violation", resp.Error.Type)
	assert.Equal(t, guardrail.DefaultBreakMessage, resp.Error.Message)
	assert.Nil(t, resp.Result)
	assert.Zero(t, crew.calls)

	require.Len(t, tracker.events, 1)
	assert.Equal(t, tracking.StatusGuardrailViolation, tracker.events[0].Status)
}

type slowPublisher struct {
	release chan struct{}
}

func (p *slowPublisher) Publish(ctx context.Context, _, _ string, _ interface{}) error {
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestRunCrew_TrackingDoesNotDelayResponse(t *testing.T) {
	crew := &fakeCrew{out: &agents.CrewOutput{Raw: "Hold SPY."}}
	pub := &slowPublisher{release: make(chan struct{})}
	tracker := tracking.NewTracker(pub, "")
	h := newTestRouter(crew, tracker, time.Second)

	start := time.Now()
	resp := decodeRun(t, postRun(t, h, `{"user_query":"Compare SPY and QQQ"}`))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	require.NotNil(t, resp.Result)

	close(pub.release)
	require.NoError(t, tracker.Flush(context.Background()))
}

func TestRunCrew_Timeout(t *testing.T) {
	crew := &fakeCrew{block: true}
	tracker := &recordingTracker{}
	h := newTestRouter(crew, tracker, 20*time.Millisecond)

	resp := decodeRun(t, postRun(t, h, `{"user_query":"Compare SPY and QQQ"}`))

	require.NotNil(t, resp.Error)
	assert.Equal(t, "timeout_error", resp.Error.Type)
	assert.Equal(t, "The request took too long to process", resp.Error.Message)
	assert.GreaterOrEqual(t, resp.ProcessingTimeMs, 20.0)

	require.Len(t, tracker.events, 1)
	assert.Equal(t, tracking.StatusTimeout, tracker.events[0].Status)
}

func TestRunCrew_ProcessingError(t *testing.T) {
	crew := &fakeCrew{err: errors.New("model gateway unreachable")}
	h := newTestRouter(crew, nil, time.Second)

	resp := decodeRun(t, postRun(t, h, `{"user_query":"Compare SPY and QQQ"}`))

	require.NotNil(t, resp.Error)
	assert.Equal(t, "processing_error", resp.Error.Type)
	assert.Equal(t, "An error occurred while running the crew: model gateway unreachable", resp.Error.Message)
	assert.Nil(t, resp.Result)
}

func TestRunCrew_NilOutput(t *testing.T) {
	h := newTestRouter(&fakeCrew{}, nil, time.Second)

	resp := decodeRun(t, postRun(t, h, `{"user_query":"Compare SPY and QQQ"}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "processing_error", resp.Error.Type)
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(&fakeCrew{}, nil, time.Second)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body health.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	_, err := time.Parse(time.RFC3339Nano, body.Timestamp)
	assert.NoError(t, err)

	for _, path := range []string{"/live", "/ready", "/metrics", "/"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	h := newTestRouter(&fakeCrew{}, nil, time.Second)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/crew/run", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 50))
	assert.Equal(t, "ab...", truncate("abc", 2))
	assert.Equal(t, "日本...", truncate("日本株", 2))
}
