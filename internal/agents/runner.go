package agents

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"advisor/internal/metrics"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
	"advisor/pkg/templates"
)

const (
	kickoffTemplate = "crew/kickoff"
	crewUserID      = "advisor"

	statusSuccess = "success"
	statusFailed  = "processing_error"
	statusTimeout = "timeout_error"
)

// Runner drives one crew run per Kickoff call.
type Runner struct {
	factory   *Factory
	templates *templates.Registry
	log       *logger.Logger
}

// NewRunner creates a runner for crews built by factory.
func NewRunner(factory *Factory) *Runner {
	return &Runner{
		factory:   factory,
		templates: factory.templates,
		log:       logger.Get().With("component", "crew_runner"),
	}
}

// Kickoff runs the crew on inputs. inputs seed the session state and are rendered
// into the opening user message. The run honours ctx cancellation and deadline.
func (r *Runner) Kickoff(ctx context.Context, inputs map[string]string) (*CrewOutput, error) {
	start := time.Now()
	metrics.CrewInFlight.Inc()
	defer metrics.CrewInFlight.Dec()

	out, err := r.kickoff(ctx, inputs)
	duration := time.Since(start)

	switch {
	case err == nil:
		metrics.RecordCrewRun(statusSuccess, duration)
		out.Duration = duration
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecordCrewRun(statusTimeout, duration)
	default:
		metrics.RecordCrewRun(statusFailed, duration)
	}
	return out, err
}

func (r *Runner) kickoff(ctx context.Context, inputs map[string]string) (*CrewOutput, error) {
	crew, err := r.factory.CreateCrew()
	if err != nil {
		return nil, err
	}

	sessions := session.InMemoryService()
	rn, err := runner.New(runner.Config{
		AppName:        CrewName,
		Agent:          crew,
		SessionService: sessions,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ADK runner")
	}

	sessionID, ok := errors.RequestIDFrom(ctx)
	if !ok || sessionID == "" {
		sessionID = uuid.NewString()
	}

	state := make(map[string]any, len(inputs))
	for k, v := range inputs {
		state[k] = v
	}
	if _, err := sessions.Create(ctx, &session.CreateRequest{
		AppName:   CrewName,
		UserID:    crewUserID,
		SessionID: sessionID,
		State:     state,
	}); err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}

	prompt, err := r.templates.Render(kickoffTemplate, inputs)
	if err != nil {
		return nil, errors.Wrapf(errors.Join(errors.ErrInvalidInput, err), "build kickoff message")
	}

	log := r.log.With("session_id", sessionID)
	log.Infow("Crew kickoff", "tasks", len(r.factory.Tasks()))

	col := newCollector(r.factory.Tasks(), r.factory.ModelName)
	runCfg := agent.RunConfig{StreamingMode: agent.StreamingModeNone}
	for event, err := range rn.Run(ctx, crewUserID, sessionID, genai.NewContentFromText(prompt, genai.RoleUser), runCfg) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.Wrap(ctxErr, "crew run interrupted")
			}
			col.fail(err)
			return nil, errors.Wrapf(errors.Join(errors.ErrCrewFailed, err), "task %s", col.current)
		}
		if task := col.observe(event); task != nil {
			log.Breadcrumb(ctx, "crew", "task finished", map[string]interface{}{
				"task":       task.Name,
				"agent":      string(task.Agent),
				"tool_calls": task.ToolCalls,
				"tokens":     task.Usage.TotalTokens,
			})
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "crew run interrupted")
	}

	out, err := col.output()
	if err != nil {
		return nil, err
	}

	for _, task := range out.Tasks {
		metrics.RecordAgentTask(string(task.Agent), task.Duration, task.Usage.PromptTokens, task.Usage.CompletionTokens)
	}
	log.Infow("Crew finished",
		"prompt_tokens", out.TokenUsage.PromptTokens,
		"completion_tokens", out.TokenUsage.CompletionTokens,
		"requests", out.TokenUsage.SuccessfulRequests,
	)
	return out, nil
}

// collector attributes session events to tasks by author.
type collector struct {
	models  map[string]string
	order   []string
	tasks   map[string]*TaskOutput
	started map[string]time.Time
	current string
	now     func() time.Time
}

func newCollector(specs []TaskSpec, modelOf func(TaskSpec) string) *collector {
	c := &collector{
		models:  make(map[string]string, len(specs)),
		order:   make([]string, 0, len(specs)),
		tasks:   make(map[string]*TaskOutput, len(specs)),
		started: make(map[string]time.Time, len(specs)),
		now:     time.Now,
	}
	for _, spec := range specs {
		c.order = append(c.order, spec.Name)
		c.models[spec.Name] = modelOf(spec)
		c.tasks[spec.Name] = &TaskOutput{Name: spec.Name, Agent: spec.Agent, OutputKey: spec.OutputKey}
	}
	return c
}

// observe folds event into its task. It returns the task when event carried
// the task's final answer.
func (c *collector) observe(event *session.Event) *TaskOutput {
	if event == nil || event.LLMResponse.Partial {
		return nil
	}
	task, ok := c.tasks[event.Author]
	if !ok {
		return nil
	}

	now := c.now()
	if _, seen := c.started[task.Name]; !seen {
		c.started[task.Name] = now
	}
	task.Duration = now.Sub(c.started[task.Name])
	c.current = task.Name

	if usage := event.LLMResponse.UsageMetadata; usage != nil {
		metrics.RecordAgentCall(string(task.Agent), c.models[task.Name], nil)
		task.Usage.Add(TokenUsage{
			PromptTokens:       int64(usage.PromptTokenCount),
			CompletionTokens:   int64(usage.CandidatesTokenCount),
			TotalTokens:        int64(usage.TotalTokenCount),
			SuccessfulRequests: 1,
		})
	}

	content := event.LLMResponse.Content
	if content == nil {
		return nil
	}

	var text []string
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.FunctionCall != nil {
			task.ToolCalls++
		}
		if part.Text != "" && !part.Thought {
			text = append(text, part.Text)
		}
	}
	if len(text) > 0 && event.IsFinalResponse() {
		task.Raw = strings.TrimSpace(strings.Join(text, ""))
		return task
	}
	return nil
}

// fail records the model or tool error that aborted the current task
func (c *collector) fail(err error) {
	if task, ok := c.tasks[c.current]; ok {
		metrics.RecordAgentCall(string(task.Agent), c.models[task.Name], err)
	}
}

func (c *collector) output() (*CrewOutput, error) {
	out := &CrewOutput{Tasks: make([]TaskOutput, 0, len(c.order))}
	for _, name := range c.order {
		task := c.tasks[name]
		out.Tasks = append(out.Tasks, *task)
		out.TokenUsage.Add(task.Usage)
	}

	if len(out.Tasks) == 0 {
		return nil, errors.Wrap(errors.ErrCrewFailed, "crew has no tasks")
	}
	last := out.Tasks[len(out.Tasks)-1]
	if last.Raw == "" {
		return nil, errors.Wrapf(errors.ErrCrewFailed, "task %s produced no output", last.Name)
	}
	out.Raw = last.Raw
	return out, nil
}
