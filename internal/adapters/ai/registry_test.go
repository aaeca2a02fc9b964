package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/internal/adapters/config"
	"advisor/pkg/errors"
)

func TestProviderRegistry(t *testing.T) {
	registry := NewProviderRegistry()

	require.NoError(t, registry.Register(NewGeminiProvider("key")))
	assert.True(t, errors.Is(registry.Register(NewGeminiProvider("other")), errors.ErrInvalidInput))
	assert.True(t, errors.Is(registry.Register(nil), errors.ErrInvalidInput))

	p, err := registry.Get("gemini")
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())

	_, err = registry.Get("gateway")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	models, err := registry.ListModels(context.Background())
	require.NoError(t, err)
	assert.Len(t, models["gemini"], 2)

	info, err := registry.ResolveModel(context.Background(), "gemini", "GEMINI-2.5-FLASH")
	require.NoError(t, err)
	assert.Equal(t, TierFlash, info.Tier)
	assert.Equal(t, ProviderNameGoogle, info.Provider)

	_, err = registry.ResolveModel(context.Background(), "gemini", "missing-model")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBuildRegistry(t *testing.T) {
	t.Run("nothing configured", func(t *testing.T) {
		_, err := BuildRegistry(&config.Config{})
		assert.True(t, errors.Is(err, errors.ErrUnavailable))
	})

	t.Run("gateway and gemini", func(t *testing.T) {
		registry, err := BuildRegistry(&config.Config{
			Gateway: config.GatewayConfig{URL: "http://localhost:8787/v1", APIKey: "pk", Provider: "@dsvertex"},
			Gemini:  config.GeminiConfig{APIKey: "g"},
		})
		require.NoError(t, err)
		assert.Len(t, registry.List(), 2)
	})
}

func TestNewModels(t *testing.T) {
	registry, err := BuildRegistry(&config.Config{
		Gateway: config.GatewayConfig{URL: "http://localhost:8787/v1", APIKey: "pk", Provider: "@dsvertex", Temperature: 0.1},
	})
	require.NoError(t, err)

	models, err := NewModels(context.Background(), registry, config.AIConfig{
		Provider:   " Gateway ",
		ProModel:   "gemini-2.5-pro",
		FlashModel: "gemini-2.5-flash",
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderNameGateway, models.Provider)

	pro, err := models.For(TierPro)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", pro.Name())

	flash, err := models.For(TierFlash)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", flash.Name())

	_, err = models.For(Tier("ultra"))
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = NewModels(context.Background(), registry, config.AIConfig{Provider: "gemini", ProModel: "p", FlashModel: "f"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = NewModels(context.Background(), registry, config.AIConfig{Provider: "claude"})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
