package provider

import (
	"fmt"

	"sift/internal/config"
)

// FromConfig builds the configured provider client. The client is
// constructed even without an API key; IsAvailable reports whether it
// can actually be called.
func FromConfig(cfg *config.Config) (Chat, error) {
	pc := cfg.Provider
	switch pc.Name {
	case "anthropic":
		return NewAnthropicClientWithConfig(AnthropicConfig{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
			Timeout: cfg.GetProviderTimeout(),
		}), nil
	case "openai":
		return NewOpenAIClientWithConfig(OpenAIConfig{
			APIKey:             pc.APIKey,
			BaseURL:            pc.BaseURL,
			Model:              pc.Model,
			TranscriptionModel: pc.TranscriptionModel,
			Timeout:            cfg.GetProviderTimeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (valid: %v)", pc.Name, config.ValidProviders)
	}
}
