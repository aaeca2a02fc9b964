package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"advisor/internal/agents"
	"advisor/internal/guardrail"
	"advisor/internal/tracking"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

const (
	minQueryLength = 3
	maxQueryLength = 1000
	logQueryLength = 50
	maxBodyBytes   = 64 << 10

	errTypeGuardrail  = "guardrail_violation"
	errTypeTimeout    = "timeout_error"
	errTypeProcessing = "processing_error"

	timeoutMessage         = "The request took too long to process"
	processingErrorMessage = "An error occurred while running the crew: "
)

// Crew runs the advisor pipeline. Satisfied by *agents.Runner.
type Crew interface {
	Kickoff(ctx context.Context, inputs map[string]string) (*agents.CrewOutput, error)
}

// Guard screens crew inputs. Satisfied by *guardrail.Guardrail.
type Guard interface {
	Check(inputs map[string]string) error
}

// RunTracker records finished runs. Satisfied by *tracking.Tracker.
type RunTracker interface {
	TrackRun(ctx context.Context, ev tracking.RunEvent)
}

// RunRequest is the POST /crew/run body
type RunRequest struct {
	UserQuery string `json:"user_query"`
}

// ErrorDetail describes why a run produced no result
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// RunResponse is returned for every accepted request, successful or not
type RunResponse struct {
	RequestID        string       `json:"request_id"`
	Timestamp        time.Time    `json:"timestamp"`
	ProcessingTimeMs float64      `json:"processing_time_ms"`
	Result           *string      `json:"result"`
	Error            *ErrorDetail `json:"error"`
}

// ValidationErrorResponse is the 422 body for rejected requests
type ValidationErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// CrewHandler serves POST /crew/run
type CrewHandler struct {
	crew    Crew
	guard   Guard
	tracker RunTracker
	timeout time.Duration
	log     *logger.Logger
}

// NewCrewHandler creates the handler. guard and tracker may be nil.
func NewCrewHandler(crew Crew, guard Guard, tracker RunTracker, timeout time.Duration, log *logger.Logger) *CrewHandler {
	return &CrewHandler{
		crew:    crew,
		guard:   guard,
		tracker: tracker,
		timeout: timeout,
		log:     log.With("component", "crew_handler"),
	}
}

// ServeHTTP validates the query, screens it and runs the crew under the configured timeout
func (h *CrewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decodeRunRequest(w, r, &req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:   "Validation error",
			Details: err.Error(),
		})
		return
	}

	requestID := uuid.NewString()
	start := time.Now()
	ctx := errors.WithRequestID(r.Context(), requestID)
	log := h.log.With("request_id", requestID)
	log.Infow("Processing query",
		"query", truncate(req.UserQuery, logQueryLength),
		"size", humanize.Bytes(uint64(len(req.UserQuery))),
	)

	inputs := map[string]string{guardrail.QueryKey: req.UserQuery}
	resp := RunResponse{RequestID: requestID}

	status, out, runErr := h.run(ctx, inputs)
	elapsed := time.Since(start)

	switch status {
	case tracking.StatusSuccess:
		resp.Result = &out.Raw
		log.Infow("Processing completed",
			"elapsed", elapsed.String(),
			"result_size", humanize.Bytes(uint64(len(out.Raw))),
			"total_tokens", humanize.Comma(out.TokenUsage.TotalTokens),
		)
	case tracking.StatusGuardrailViolation:
		resp.Error = &ErrorDetail{Type: errTypeGuardrail, Message: runErr.Error()}
		tags := map[string]string{"status": status}
		var violation *guardrail.Violation
		if errors.As(runErr, &violation) {
			tags["keyword"] = violation.Keyword
		}
		log.Message(ctx, errors.LevelWarning, "Guardrail check failed", tags)
	case tracking.StatusTimeout:
		resp.Error = &ErrorDetail{Type: errTypeTimeout, Message: timeoutMessage}
		log.Errorw("Processing timed out", "elapsed", elapsed.String())
	default:
		resp.Error = &ErrorDetail{Type: errTypeProcessing, Message: processingErrorMessage + runErr.Error()}
		log.ErrorWithContext(ctx, runErr, map[string]string{"status": status})
	}

	resp.Timestamp = time.Now()
	resp.ProcessingTimeMs = float64(elapsed.Microseconds()) / 1000

	if h.tracker != nil {
		h.tracker.TrackRun(context.WithoutCancel(ctx),
			tracking.NewRunEvent(requestID, req.UserQuery, status, elapsed, out, runErr))
	}

	writeJSON(w, http.StatusOK, resp)
}

type kickoffResult struct {
	out *agents.CrewOutput
	err error
}

// run returns the tracking status of the run together with its output or error
func (h *CrewHandler) run(ctx context.Context, inputs map[string]string) (string, *agents.CrewOutput, error) {
	if h.guard != nil {
		if err := h.guard.Check(inputs); err != nil {
			return tracking.StatusOf(err), nil, err
		}
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	// The crew is expected to honour ctx, but the deadline is enforced here regardless
	done := make(chan kickoffResult, 1)
	go func() {
		out, err := h.crew.Kickoff(ctx, inputs)
		done <- kickoffResult{out: out, err: err}
	}()

	var res kickoffResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = kickoffResult{err: ctx.Err()}
	}

	if res.err == nil && res.out == nil {
		res.err = errors.Wrap(errors.ErrCrewFailed, "crew returned no output")
	}
	if res.err != nil {
		return tracking.StatusOf(res.err), nil, res.err
	}
	return tracking.StatusSuccess, res.out, nil
}

func decodeRunRequest(w http.ResponseWriter, r *http.Request, req *RunRequest) error {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&raw); err != nil {
		return errors.Wrap(err, "body: invalid JSON")
	}

	field, ok := raw["user_query"]
	if !ok {
		return errors.New("user_query: field required")
	}
	if err := json.Unmarshal(field, &req.UserQuery); err != nil {
		return errors.New("user_query: input should be a valid string")
	}
	return validateQuery(req.UserQuery)
}

func validateQuery(query string) error {
	n := utf8.RuneCountInString(query)
	switch {
	case n < minQueryLength:
		return errors.Newf("user_query: string should have at least %d characters", minQueryLength)
	case n > maxQueryLength:
		return errors.Newf("user_query: string should have at most %d characters", maxQueryLength)
	case strings.TrimSpace(query) == "":
		return errors.New("user_query: query cannot be empty")
	}
	return nil
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
