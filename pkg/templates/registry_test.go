package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/pkg/errors"
)

func TestRegistryLoadAndRender(t *testing.T) {
	base := t.TempDir()
	agentDir := filepath.Join(base, "agents")
	require.NoError(t, os.MkdirAll(agentDir, 0o755))

	tplPath := filepath.Join(agentDir, "financial_advisor.tmpl")
	require.NoError(t, os.WriteFile(tplPath, []byte("Hello {{.Name}}"), 0o644))

	reg, err := NewRegistry(base)
	require.NoError(t, err)

	tmpl, err := reg.GetTemplate("agents/financial_advisor")
	require.NoError(t, err)

	rendered, err := tmpl.Render(map[string]string{"Name": "Priya"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Priya", rendered)

	// Parsed templates keep the content they were loaded with
	require.NoError(t, os.WriteFile(tplPath, []byte("Hi {{.Name}}"), 0o644))
	rendered, err = tmpl.Render(map[string]string{"Name": "Sam"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Sam", rendered)
}

func TestRegistryLazyLoad(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base)
	require.NoError(t, err)
	assert.Empty(t, reg.List())

	path := filepath.Join(base, "crew", "summary.tmpl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("Ticker {{.Symbol}}"), 0o644))

	rendered, err := reg.Render("crew/summary", map[string]string{"Symbol": "SPY"})
	require.NoError(t, err)
	assert.Equal(t, "Ticker SPY", rendered)
	assert.Equal(t, []string{"crew/summary"}, reg.List())
}

func TestRegistryErrors(t *testing.T) {
	reg, err := NewRegistry(t.TempDir())
	require.NoError(t, err)

	_, err = reg.Render("missing/template", nil)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = Get().Render("crew/kickoff", map[string]string{})
	assert.Error(t, err, "missing keys must fail instead of rendering <no value>")
}

func TestEmbeddedTemplates(t *testing.T) {
	reg := Get()
	assert.Contains(t, reg.List(), "agents/instruction")
	assert.Contains(t, reg.List(), "crew/kickoff")

	out, err := reg.Render("agents/instruction", map[string]any{
		"Role":           "Financial Advisor",
		"Goal":           "Give advice",
		"Backstory":      "Certified planner",
		"Task":           "Recommend an allocation",
		"ExpectedOutput": "A short report",
		"Context":        []string{"user_profile", "market_data"},
		"Tools":          []string{"calculator"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "You are the Financial Advisor.")
	assert.Contains(t, out, "user_profile, market_data")
	assert.Contains(t, out, "Tools available to you: calculator.")

	out, err = reg.Render("agents/instruction", map[string]any{
		"Role": "Analyst", "Goal": "g", "Backstory": "b", "Task": "t", "ExpectedOutput": "e",
		"Context": []string(nil), "Tools": []string(nil),
	})
	require.NoError(t, err)
	assert.NotContains(t, out, "Tools available")

	out, err = reg.Render("crew/kickoff", map[string]string{"query": "SPY or QQQ?"})
	require.NoError(t, err)
	assert.Equal(t, "User query: SPY or QQQ?\n", out)
}
