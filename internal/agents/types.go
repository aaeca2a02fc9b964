package agents

import "time"

// AgentType enumerates the crew members.
type AgentType string

const (
	AgentCustomerSupport      AgentType = "customer_support_representative"
	AgentMarketDataResearcher AgentType = "market_data_researcher"
	AgentSentimentAnalyst     AgentType = "sentiment_analyst"
	AgentFinancialAdvisor     AgentType = "financial_advisor"
)

// Task names, in execution order.
const (
	TaskUserProfileExtraction = "user_profile_extraction_task"
	TaskResearchMarketData    = "research_market_data_task"
	TaskMarketSentiment       = "market_sentiment_task"
	TaskFinancialAdvisement   = "financial_advisement_task"
)

const (
	// CrewName names the sequential workflow and the ADK app.
	CrewName        = "AgenticInvestmentAdvisor"
	crewDescription = "Agentic Investment Advisor: profile extraction, market research, sentiment analysis and advice"
)

// TokenUsage aggregates model token counts.
type TokenUsage struct {
	PromptTokens       int64 `json:"prompt_tokens"`
	CompletionTokens   int64 `json:"completion_tokens"`
	TotalTokens        int64 `json:"total_tokens"`
	SuccessfulRequests int64 `json:"successful_requests"`
}

// Add accumulates another usage record.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.SuccessfulRequests += other.SuccessfulRequests
}

// TaskOutput is what one task produced.
type TaskOutput struct {
	Name      string        `json:"name"`
	Agent     AgentType     `json:"agent"`
	OutputKey string        `json:"output_key"`
	Raw       string        `json:"raw"`
	ToolCalls int           `json:"tool_calls"`
	Usage     TokenUsage    `json:"usage"`
	Duration  time.Duration `json:"duration"`
}

// CrewOutput is the result of a kickoff. Raw is the final task's output.
type CrewOutput struct {
	Raw        string        `json:"raw"`
	Tasks      []TaskOutput  `json:"tasks"`
	TokenUsage TokenUsage    `json:"token_usage"`
	Duration   time.Duration `json:"duration"`
}
