package ai

import (
	"context"

	"google.golang.org/adk/model"
)

// Provider defines the contract each AI provider implementation must satisfy.
type Provider interface {
	Name() string

	// GetModel returns metadata for a specific model.
	GetModel(ctx context.Context, model string) (ModelInfo, error)

	// ListModels returns the list of available models for the provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// LLM returns an ADK model bound to the named model.
	LLM(ctx context.Context, model string) (model.LLM, error)

	// SupportsStreaming indicates whether the provider can stream responses.
	SupportsStreaming() bool

	// SupportsTools indicates whether the provider supports tool/function calling.
	SupportsTools() bool
}

// ModelInfo describes the capabilities of a model.
type ModelInfo struct {
	Provider          ProviderName // Owning provider
	Name              string       // Provider-specific model identifier
	Family            string       // Family/category name (e.g., "gemini-2.5")
	Tier              Tier         // Crew tier the model is suited for
	MaxTokens         int          // Maximum context length
	SupportsTools     bool         // Whether tool calling is supported
	SupportsStreaming bool         // Whether streaming responses are available
}
