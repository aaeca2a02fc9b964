package ai

// ProviderName represents an AI provider identifier
type ProviderName string

// Provider name constants
const (
	// ProviderNameGateway is an OpenAI-compatible gateway (Portkey) fronting Vertex models
	ProviderNameGateway ProviderName = "gateway"
	ProviderNameGoogle  ProviderName = "gemini"
)

// String returns the string representation of the provider name
func (p ProviderName) String() string {
	return string(p)
}

// IsValid checks if the provider name is supported
func (p ProviderName) IsValid() bool {
	switch p {
	case ProviderNameGateway, ProviderNameGoogle:
		return true
	default:
		return false
	}
}

// AllProviderNames returns all supported provider names
func AllProviderNames() []ProviderName {
	return []ProviderName{
		ProviderNameGateway,
		ProviderNameGoogle,
	}
}

// Tier selects between the reasoning model and the fast model
type Tier string

const (
	TierPro   Tier = "pro"
	TierFlash Tier = "flash"
)

// IsValid checks if the tier is known
func (t Tier) IsValid() bool {
	return t == TierPro || t == TierFlash
}

type ProviderModelName string

// Model name constants
const (
	ModelGemini25Pro   ProviderModelName = "gemini-2.5-pro"
	ModelGemini25Flash ProviderModelName = "gemini-2.5-flash"
)

// Gateway headers understood by Portkey
const (
	headerPortkeyAPIKey   = "x-portkey-api-key"
	headerPortkeyProvider = "x-portkey-provider"

	// The gateway authenticates with the Portkey key; the OpenAI key slot only needs to be non-empty
	gatewayPlaceholderKey = "dummy_key"
)

func knownModels(provider ProviderName) []ModelInfo {
	return []ModelInfo{
		{
			Provider:          provider,
			Name:              string(ModelGemini25Pro),
			Family:            "gemini-2.5",
			Tier:              TierPro,
			MaxTokens:         1048576,
			SupportsTools:     true,
			SupportsStreaming: true,
		},
		{
			Provider:          provider,
			Name:              string(ModelGemini25Flash),
			Family:            "gemini-2.5",
			Tier:              TierFlash,
			MaxTokens:         1048576,
			SupportsTools:     true,
			SupportsStreaming: true,
		},
	}
}
