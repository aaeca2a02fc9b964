package agents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/internal/adapters/ai"
	"advisor/pkg/errors"
)

func TestLoadCrewConfig_Embedded(t *testing.T) {
	cfg, err := LoadCrewConfig("")
	require.NoError(t, err)

	names := make([]string, 0, len(cfg.Tasks))
	for _, task := range cfg.Tasks {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{
		TaskUserProfileExtraction,
		TaskResearchMarketData,
		TaskMarketSentiment,
		TaskFinancialAdvisement,
	}, names)

	tiers := map[AgentType]ai.Tier{
		AgentCustomerSupport:      ai.TierPro,
		AgentMarketDataResearcher: ai.TierPro,
		AgentSentimentAnalyst:     ai.TierFlash,
		AgentFinancialAdvisor:     ai.TierPro,
	}
	require.Len(t, cfg.Agents, len(tiers))
	for agentType, tier := range tiers {
		spec, ok := cfg.Agents[agentType]
		require.True(t, ok, agentType)
		assert.Equal(t, tier, spec.LLM, agentType)
		assert.Equal(t, agentType, spec.Type)
		assert.NotEmpty(t, spec.Role)
	}

	assert.ElementsMatch(t, []string{"search_tool", "scrape_tool", "calculator"}, cfg.Agents[AgentMarketDataResearcher].Tools)
	assert.Contains(t, cfg.Agents[AgentFinancialAdvisor].Tools, "calculator")
	assert.Empty(t, cfg.Agents[AgentCustomerSupport].Tools)

	last := cfg.Tasks[len(cfg.Tasks)-1]
	assert.Equal(t, AgentFinancialAdvisor, last.Agent)
	assert.Equal(t, "financial_advice", last.OutputKey)
	assert.Equal(t, []string{"user_profile", "market_data", "market_sentiment"}, last.Context)

	assert.Equal(t, 5, cfg.Params.SearchMaxResults())
	assert.Equal(t, "Request contains prohibited content.", cfg.Params.Guardrails.BreakMessage)
	assert.Contains(t, cfg.Params.Guardrails.ProhibitedKeywords, "insider trading")
}

func TestLoadParams_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
guardrails:
  prohibited_keywords: [crypto pump]
  break_message: Blocked.
tools:
  tavily_search_tool:
    max_results: 8
`), 0o644))

	params, err := LoadParams(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"crypto pump"}, params.Guardrails.ProhibitedKeywords)
	assert.Equal(t, "Blocked.", params.Guardrails.BreakMessage)
	assert.Equal(t, 8, params.SearchMaxResults())

	_, err = LoadParams(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("guardrails: [unterminated"), 0o644))
	_, err = LoadParams(bad)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestSearchMaxResultsDefault(t *testing.T) {
	assert.Equal(t, 5, Params{}.SearchMaxResults())
}

func TestParseCrewConfig_Validation(t *testing.T) {
	agentsYAML := []byte(`
analyst:
  role: Analyst
  llm: flash
`)

	tests := []struct {
		name   string
		agents []byte
		tasks  string
	}{
		{name: "no tasks", agents: agentsYAML, tasks: "{}"},
		{name: "unknown agent", agents: agentsYAML, tasks: `
t1:
  agent: nobody
  output_key: a
`},
		{name: "missing output key", agents: agentsYAML, tasks: `
t1:
  agent: analyst
`},
		{name: "duplicate output key", agents: agentsYAML, tasks: `
t1:
  agent: analyst
  output_key: a
t2:
  agent: analyst
  output_key: a
`},
		{name: "context from a later task", agents: agentsYAML, tasks: `
t1:
  agent: analyst
  output_key: a
  context: [b]
t2:
  agent: analyst
  output_key: b
`},
		{name: "bad tier", agents: []byte("analyst:\n  role: Analyst\n  llm: ultra\n"), tasks: `
t1:
  agent: analyst
  output_key: a
`},
		{name: "not a mapping", agents: agentsYAML, tasks: "- a\n- b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCrewConfig(tt.agents, []byte(tt.tasks), Params{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidInput), err.Error())
		})
	}
}

func TestParseCrewConfig_KeepsOrder(t *testing.T) {
	cfg, err := ParseCrewConfig([]byte("a:\n  role: A\n  llm: pro\n"), []byte(`
zeta:
  agent: a
  output_key: z
alpha:
  agent: a
  output_key: y
  context: [z]
`), Params{})
	require.NoError(t, err)
	require.Len(t, cfg.Tasks, 2)
	assert.Equal(t, "zeta", cfg.Tasks[0].Name)
	assert.Equal(t, "alpha", cfg.Tasks[1].Name)
}
