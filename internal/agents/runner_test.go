package agents

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"advisor/internal/adapters/ai"
	"advisor/internal/tools"
	"advisor/internal/tools/shared"
	"advisor/pkg/errors"
	"advisor/pkg/templates"
)

// scriptedLLM calls the calculator once when it is offered, then answers with text.
type scriptedLLM struct {
	name string
	err  error

	mu    sync.Mutex
	calls int
}

func (m *scriptedLLM) Name() string { return m.name }

func (m *scriptedLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		m.mu.Lock()
		m.calls++
		m.mu.Unlock()

		if m.err != nil {
			yield(nil, m.err)
			return
		}

		usage := &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 5,
			TotalTokenCount:      15,
		}

		last := lastPart(req.Contents)
		answered := last != nil && last.FunctionResponse != nil
		if offersTool(req, "calculator") && !answered {
			yield(&model.LLMResponse{
				Content: &genai.Content{Role: "model", Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{Name: "calculator", Args: map[string]any{"operation": "2+2"}},
				}}},
				UsageMetadata: usage,
			}, nil)
			return
		}

		text := m.name + ": done"
		if answered {
			text = m.name + ": calculated"
		}
		yield(&model.LLMResponse{
			Content:       &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
			UsageMetadata: usage,
			TurnComplete:  true,
		}, nil)
	}
}

func lastPart(contents []*genai.Content) *genai.Part {
	if len(contents) == 0 {
		return nil
	}
	parts := contents[len(contents)-1].Parts
	if len(parts) == 0 {
		return nil
	}
	return parts[len(parts)-1]
}

func offersTool(req *model.LLMRequest, name string) bool {
	if _, ok := req.Tools[name]; ok {
		return true
	}
	if req.Config == nil {
		return false
	}
	for _, t := range req.Config.Tools {
		for _, fd := range t.FunctionDeclarations {
			if fd.Name == name {
				return true
			}
		}
	}
	return false
}

func newTestRunner(t *testing.T, pro, flash model.LLM) *Runner {
	t.Helper()

	cfg, err := LoadCrewConfig("")
	require.NoError(t, err)

	registry := tools.NewRegistry()
	tools.RegisterAllTools(registry, shared.Deps{})

	factory, err := NewFactory(FactoryDeps{
		Models: ai.NewStaticModels(ai.ProviderNameGateway, pro, flash),
		Tools:  registry,
		Config: cfg,
	})
	require.NoError(t, err)
	return NewRunner(factory)
}

func TestNewFactoryRequiresTemplates(t *testing.T) {
	cfg, err := LoadCrewConfig("")
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "agents"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents", "instruction.tmpl"), []byte("You are {{.Role}}."), 0o644))

	deps := FactoryDeps{
		Models: ai.NewStaticModels(ai.ProviderNameGateway, &scriptedLLM{name: "pro"}, &scriptedLLM{name: "flash"}),
		Tools:  tools.NewRegistry(),
		Config: cfg,
	}

	deps.Templates, err = templates.NewRegistry(dir)
	require.NoError(t, err)
	_, err = NewFactory(deps)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "kickoff template is missing")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "crew"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crew", "kickoff.tmpl"), []byte("{{.query}}"), 0o644))

	deps.Templates, err = templates.NewRegistry(dir)
	require.NoError(t, err)
	_, err = NewFactory(deps)
	assert.NoError(t, err)
}

func TestKickoff(t *testing.T) {
	pro := &scriptedLLM{name: "pro-model"}
	flash := &scriptedLLM{name: "flash-model"}
	runner := newTestRunner(t, pro, flash)

	out, err := runner.Kickoff(context.Background(), map[string]string{"query": "I'm 45, SPY or QQQ?"})
	require.NoError(t, err)
	require.Len(t, out.Tasks, 4)

	assert.Equal(t, "pro-model: calculated", out.Raw)
	assert.Equal(t, TaskFinancialAdvisement, out.Tasks[3].Name)
	assert.Equal(t, out.Raw, out.Tasks[3].Raw)

	assert.Equal(t, "pro-model: done", out.Tasks[0].Raw)
	assert.Equal(t, "pro-model: calculated", out.Tasks[1].Raw)
	assert.Equal(t, "flash-model: done", out.Tasks[2].Raw)

	assert.Equal(t, 0, out.Tasks[0].ToolCalls)
	assert.Equal(t, 1, out.Tasks[1].ToolCalls)
	assert.Equal(t, 0, out.Tasks[2].ToolCalls)
	assert.Equal(t, 1, out.Tasks[3].ToolCalls)

	// Four final answers plus two tool-calling turns
	assert.Equal(t, int64(6), out.TokenUsage.SuccessfulRequests)
	assert.Equal(t, int64(60), out.TokenUsage.PromptTokens)
	assert.Equal(t, int64(30), out.TokenUsage.CompletionTokens)
	assert.Equal(t, int64(90), out.TokenUsage.TotalTokens)

	assert.Equal(t, 5, pro.calls)
	assert.Equal(t, 1, flash.calls)
	assert.Positive(t, out.Duration)
}

func TestKickoff_ModelFailure(t *testing.T) {
	failing := &scriptedLLM{name: "pro-model", err: errors.Wrap(errors.ErrExternal, "gateway down")}
	runner := newTestRunner(t, failing, &scriptedLLM{name: "flash-model"})

	_, err := runner.Kickoff(context.Background(), map[string]string{"query": "SPY or QQQ?"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCrewFailed))
	assert.Contains(t, err.Error(), "gateway down")
}

func TestKickoff_Cancelled(t *testing.T) {
	runner := newTestRunner(t, &scriptedLLM{name: "pro-model"}, &scriptedLLM{name: "flash-model"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := runner.Kickoff(ctx, map[string]string{"query": "SPY or QQQ?"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestKickoff_RequiresQuery(t *testing.T) {
	runner := newTestRunner(t, &scriptedLLM{name: "pro-model"}, &scriptedLLM{name: "flash-model"})

	_, err := runner.Kickoff(context.Background(), map[string]string{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestNewFactory_RequiresDeps(t *testing.T) {
	_, err := NewFactory(FactoryDeps{})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestFactory_CreateCrew(t *testing.T) {
	runner := newTestRunner(t, &scriptedLLM{name: "pro-model"}, &scriptedLLM{name: "flash-model"})

	crew, err := runner.factory.CreateCrew()
	require.NoError(t, err)
	assert.Equal(t, CrewName, crew.Name())

	subs := crew.SubAgents()
	require.Len(t, subs, 4)
	for i, task := range runner.factory.Tasks() {
		assert.Equal(t, task.Name, subs[i].Name())
	}

	assert.Equal(t, "flash-model", runner.factory.ModelName(runner.factory.Tasks()[2]))
}

func TestCollector(t *testing.T) {
	specs := []TaskSpec{
		{Name: "first", Agent: AgentCustomerSupport, OutputKey: "a"},
		{Name: "second", Agent: AgentFinancialAdvisor, OutputKey: "b"},
	}
	col := newCollector(specs, func(TaskSpec) string { return "m" })
	tick := time.Unix(0, 0)
	col.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	text := func(author, s string, partial bool) *session.Event {
		ev := session.NewEvent("inv")
		ev.Author = author
		ev.LLMResponse = model.LLMResponse{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: s}}},
			Partial: partial,
		}
		return ev
	}

	assert.Nil(t, col.observe(nil))
	assert.Nil(t, col.observe(text("user", "ignored", false)))
	assert.Nil(t, col.observe(text("first", "partial chunk", true)))
	finished := col.observe(text("first", "  profile  ", false))
	require.NotNil(t, finished)
	assert.Equal(t, "first", finished.Name)

	_, err := col.output()
	assert.True(t, errors.Is(err, errors.ErrCrewFailed), "last task has no output yet")

	col.observe(text("second", "advice", false))
	col.observe(text("second", "final advice", false))

	out, err := col.output()
	require.NoError(t, err)
	assert.Equal(t, "profile", out.Tasks[0].Raw)
	assert.Equal(t, "final advice", out.Raw)
	assert.Equal(t, time.Second, out.Tasks[1].Duration)
	assert.True(t, strings.HasPrefix(out.Tasks[1].Name, "second"))
}
