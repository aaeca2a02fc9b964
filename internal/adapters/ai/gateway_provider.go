package ai

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"google.golang.org/adk/model"

	"advisor/internal/adapters/config"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

// GatewayProvider serves models through an OpenAI-compatible gateway.
// Requests carry the Portkey key and provider slug as headers.
type GatewayProvider struct {
	client      openai.Client
	temperature float64
	models      []ModelInfo
	log         *logger.Logger
}

// NewGatewayProvider creates a gateway provider. Extra options are appended after the
// config-derived ones, so callers can override transport details.
func NewGatewayProvider(cfg config.GatewayConfig, opts ...option.RequestOption) *GatewayProvider {
	base := cfg.URL
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(base),
		option.WithAPIKey(gatewayPlaceholderKey),
		option.WithHeader(headerPortkeyAPIKey, cfg.APIKey),
		option.WithHeader(headerPortkeyProvider, cfg.Provider),
	}
	reqOpts = append(reqOpts, opts...)

	return &GatewayProvider{
		client:      openai.NewClient(reqOpts...),
		temperature: cfg.Temperature,
		models:      knownModels(ProviderNameGateway),
		log:         logger.Get().With("component", "ai_gateway"),
	}
}

// Name returns provider name.
func (p *GatewayProvider) Name() string { return ProviderNameGateway.String() }

// GetModel returns model info by name.
func (p *GatewayProvider) GetModel(_ context.Context, model string) (ModelInfo, error) {
	return findModel(p.models, model)
}

// ListModels lists the models the crew is tuned for. The gateway accepts any name it routes.
func (p *GatewayProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return p.models, nil
}

// LLM returns an ADK model that sends chat completions through the gateway.
func (p *GatewayProvider) LLM(_ context.Context, name string) (model.LLM, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "model name is required")
	}
	return &GatewayModel{
		client:      p.client,
		name:        name,
		temperature: p.temperature,
		log:         p.log.With("model", name),
	}, nil
}

// SupportsStreaming indicates streaming support.
func (p *GatewayProvider) SupportsStreaming() bool { return false }

// SupportsTools indicates tool calling support.
func (p *GatewayProvider) SupportsTools() bool { return true }
