package ai

import (
	"context"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"advisor/pkg/errors"
)

// GeminiProvider talks to the Gemini API directly through ADK's genai-backed model.
type GeminiProvider struct {
	apiKey string
	models []ModelInfo
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey, models: knownModels(ProviderNameGoogle)}
}

// Name returns provider name.
func (p *GeminiProvider) Name() string { return ProviderNameGoogle.String() }

// GetModel returns model info by name.
func (p *GeminiProvider) GetModel(_ context.Context, model string) (ModelInfo, error) {
	return findModel(p.models, model)
}

// ListModels lists available models.
func (p *GeminiProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return p.models, nil
}

// LLM builds a genai client for the model.
func (p *GeminiProvider) LLM(ctx context.Context, name string) (model.LLM, error) {
	if p.apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gemini API key is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "model name is required")
	}

	llm, err := gemini.NewModel(ctx, name, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create gemini model %s", name)
	}
	return llm, nil
}

// SupportsStreaming indicates streaming support.
func (p *GeminiProvider) SupportsStreaming() bool { return true }

// SupportsTools indicates tool calling support.
func (p *GeminiProvider) SupportsTools() bool { return true }

func findModel(models []ModelInfo, name string) (ModelInfo, error) {
	for _, m := range models {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return ModelInfo{}, errors.Wrapf(errors.ErrNotFound, "model %s", name)
}
