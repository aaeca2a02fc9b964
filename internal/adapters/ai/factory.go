package ai

import (
	"context"
	"strings"

	"github.com/openai/openai-go/v3/option"
	"google.golang.org/adk/model"

	"advisor/internal/adapters/config"
	"advisor/pkg/errors"
)

// BuildRegistry initializes a ProviderRegistry with all providers that have credentials configured.
// Gateway options are passed through to the OpenAI client (tests point it at a local server).
func BuildRegistry(cfg *config.Config, gatewayOpts ...option.RequestOption) (*ProviderRegistry, error) {
	registry := NewProviderRegistry()

	if cfg.Gateway.URL != "" {
		if err := registry.Register(NewGatewayProvider(cfg.Gateway, gatewayOpts...)); err != nil {
			return nil, err
		}
	}

	if cfg.Gemini.APIKey != "" {
		if err := registry.Register(NewGeminiProvider(cfg.Gemini.APIKey)); err != nil {
			return nil, err
		}
	}

	if len(registry.List()) == 0 {
		return nil, errors.Wrap(errors.ErrUnavailable, "no LLM provider configured")
	}

	return registry, nil
}

// Models maps crew tiers to ADK models of the selected provider.
type Models struct {
	Provider ProviderName
	byTier   map[Tier]model.LLM
}

// NewModels instantiates the pro and flash models of the provider named in cfg.
func NewModels(ctx context.Context, registry *ProviderRegistry, cfg config.AIConfig) (*Models, error) {
	name := ProviderName(NormalizeProviderName(cfg.Provider))
	if !name.IsValid() {
		return nil, errors.NewValidationError("LLM_PROVIDER", "unknown provider", cfg.Provider)
	}

	provider, err := registry.Get(name.String())
	if err != nil {
		return nil, err
	}

	models := &Models{Provider: name, byTier: make(map[Tier]model.LLM, 2)}
	for tier, modelName := range map[Tier]string{TierPro: cfg.ProModel, TierFlash: cfg.FlashModel} {
		llm, err := provider.LLM(ctx, modelName)
		if err != nil {
			return nil, errors.Wrapf(err, "%s tier", tier)
		}
		models.byTier[tier] = llm
	}

	return models, nil
}

// NewStaticModels wraps already constructed models, e.g. fakes in tests.
func NewStaticModels(provider ProviderName, pro, flash model.LLM) *Models {
	return &Models{
		Provider: provider,
		byTier:   map[Tier]model.LLM{TierPro: pro, TierFlash: flash},
	}
}

// For returns the model for a tier.
func (m *Models) For(tier Tier) (model.LLM, error) {
	llm, ok := m.byTier[tier]
	if !ok || llm == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "model tier %q", tier)
	}
	return llm, nil
}

// NormalizeProviderName makes provider lookup more forgiving.
func NormalizeProviderName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
