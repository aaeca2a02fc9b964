// Package guardrail rejects queries that ask for unethical or illegal help
// before any agent sees them.
package guardrail

import (
	"strings"

	"advisor/internal/metrics"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

// DefaultBreakMessage is returned when no message is configured
const DefaultBreakMessage = "Request contains prohibited content."

// QueryKey is the crew input inspected by the guardrail
const QueryKey = "query"

// Config is the guardrails section of params.yaml
type Config struct {
	ProhibitedKeywords []string `yaml:"prohibited_keywords"`
	BreakMessage       string   `yaml:"break_message"`
}

// Violation is returned when a query contains a prohibited keyword.
// Its message is the configured break message and nothing else.
type Violation struct {
	Keyword string
	Message string
}

func (v *Violation) Error() string {
	return v.Message
}

// Unwrap lets violations match ErrGuardrailViolation
func (v *Violation) Unwrap() error {
	return errors.ErrGuardrailViolation
}

// Guardrail checks crew inputs against a keyword list
type Guardrail struct {
	keywords []string
	message  string
	log      *logger.Logger
}

// New lower-cases the configured keywords and drops blank ones. Surrounding
// spaces are kept, so " war " only matches the separate word.
func New(cfg Config) *Guardrail {
	keywords := make([]string, 0, len(cfg.ProhibitedKeywords))
	for _, kw := range cfg.ProhibitedKeywords {
		if strings.TrimSpace(kw) != "" {
			keywords = append(keywords, strings.ToLower(kw))
		}
	}

	message := strings.TrimSpace(cfg.BreakMessage)
	if message == "" {
		message = DefaultBreakMessage
	}

	return &Guardrail{
		keywords: keywords,
		message:  message,
		log:      logger.Get().With("component", "guardrail"),
	}
}

// Check returns a *Violation if the query input contains any prohibited keyword.
// A missing query is treated as empty.
func (g *Guardrail) Check(inputs map[string]string) error {
	query := strings.ToLower(inputs[QueryKey])

	for _, kw := range g.keywords {
		if strings.Contains(query, kw) {
			metrics.RecordGuardrailBlock()
			g.log.Warnw("Query blocked by guardrail", "keyword", kw)
			return &Violation{Keyword: kw, Message: g.message}
		}
	}
	return nil
}

// Keywords returns the normalized keyword list
func (g *Guardrail) Keywords() []string {
	out := make([]string, len(g.keywords))
	copy(out, g.keywords)
	return out
}
