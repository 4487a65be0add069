package llm

import (
	"fmt"

	"github.com/prosperitypirate/opencode-memory/internal/config"
)

// breakerConfig converts an LLMConfig's circuit breaker tuning into the
// shared CircuitBreakerConfig every provider client wraps its calls in.
func breakerConfig(cfg config.LLMConfig) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:          cfg.CircuitBreakerMaxFailures,
		Timeout:              cfg.CircuitBreakerTimeout,
		HalfOpenMaxSuccesses: cfg.CircuitBreakerHalfOpenMaxSuccesses,
	}
}

// NewChatCapability creates the ChatCapability for cfg.Provider.
func NewChatCapability(cfg config.LLMConfig) (ChatCapability, error) {
	switch cfg.Provider {
	case "xai", "":
		return NewXAIClient(XAIConfig{
			APIKey:  cfg.XAIAPIKey,
			Model:   cfg.XAIModel,
			BaseURL: cfg.XAIBaseURL,
			Timeout: cfg.RequestTimeout,
			Breaker: breakerConfig(cfg),
		}), nil
	case "google":
		return NewGoogleClient(GoogleConfig{
			APIKey:  cfg.GoogleAPIKey,
			Model:   cfg.GoogleModel,
			BaseURL: cfg.GoogleBaseURL,
			Timeout: cfg.RequestTimeout,
			Breaker: breakerConfig(cfg),
		}), nil
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			BaseURL: cfg.AnthropicBaseURL,
			Timeout: cfg.RequestTimeout,
			Breaker: breakerConfig(cfg),
		}), nil
	default:
		return nil, fmt.Errorf("llm: unsupported chat provider %q", cfg.Provider)
	}
}

// NewEmbedCapability creates the EmbedCapability for cfg.EmbedProvider.
func NewEmbedCapability(cfg config.LLMConfig) (EmbedCapability, error) {
	switch cfg.EmbedProvider {
	case "voyage", "":
		return NewVoyageClient(VoyageConfig{
			APIKey:  cfg.VoyageAPIKey,
			Model:   cfg.VoyageModel,
			BaseURL: cfg.VoyageBaseURL,
			Timeout: cfg.RequestTimeout,
			Breaker: breakerConfig(cfg),
		}), nil
	default:
		return nil, fmt.Errorf("llm: unsupported embed provider %q", cfg.EmbedProvider)
	}
}
