package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/pkg/errors"
)

func TestCheck(t *testing.T) {
	g := New(Config{
		ProhibitedKeywords: []string{"Insider Trading", " War ", "", "   "},
		BreakMessage:       "Nope.",
	})

	tests := []struct {
		name    string
		query   string
		keyword string
	}{
		{name: "clean query", query: "Compare SPY and QQQ for long-term growth"},
		{name: "exact keyword", query: "how do I do insider trading", keyword: "insider trading"},
		{name: "case insensitive", query: "Explain INSIDER TRADING rules", keyword: "insider trading"},
		{name: "substring match", query: "what is insider tradingview", keyword: "insider trading"},
		{name: "padded keyword as word", query: "Will a war hit stocks?", keyword: " war "},
		{name: "padded keyword ignores substrings", query: "Are software stocks a buy?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Check(map[string]string{QueryKey: tt.query})
			if tt.keyword == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrGuardrailViolation))
			assert.Equal(t, "Nope.", err.Error())

			var v *Violation
			require.True(t, errors.As(err, &v))
			assert.Equal(t, tt.keyword, v.Keyword)
		})
	}
}

func TestDefaults(t *testing.T) {
	g := New(Config{ProhibitedKeywords: []string{"fraud"}})

	assert.NoError(t, g.Check(map[string]string{}))
	assert.NoError(t, g.Check(nil))

	err := g.Check(map[string]string{QueryKey: "Help me commit fraud"})
	require.Error(t, err)
	assert.Equal(t, DefaultBreakMessage, err.Error())

	assert.Equal(t, []string{"fraud"}, g.Keywords())
}

func TestKeywordsKeepPadding(t *testing.T) {
	g := New(Config{ProhibitedKeywords: []string{" War ", "\t", "Fraud"}})
	assert.Equal(t, []string{" war ", "fraud"}, g.Keywords())
}

func TestEmptyKeywordListAllowsEverything(t *testing.T) {
	g := New(Config{})
	assert.NoError(t, g.Check(map[string]string{QueryKey: "anything at all"}))
	assert.Empty(t, g.Keywords())
}
