package llm

import (
	"fmt"

	"github.com/simonyos/mango/internal/config"
)

// Lookups against the app config; swapped out in tests.
var (
	lookupAPIKey    = defaultLookupAPIKey
	lookupOllamaURL = defaultLookupOllamaURL
)

func defaultLookupAPIKey(kind string) string { return config.APIKey(kind) }

func defaultLookupOllamaURL() string { return config.Get().OllamaURL }

// ResolveAPIKey returns cfg's own key, or else the key stored in the app
// config or the vendor's environment variable.
func ResolveAPIKey(cfg Config) string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	return lookupAPIKey(string(cfg.Kind))
}

// New builds the adapter for cfg, resolving its key with ResolveAPIKey.
func New(cfg Config) (Provider, error) {
	apiKey := ResolveAPIKey(cfg)

	switch cfg.Kind {
	case KindCompatible:
		if cfg.EndpointURL == "" {
			return nil, ErrMissingEndpoint
		}
		return NewOpenAICompatible(cfg.EndpointURL, apiKey, cfg.Model), nil
	case KindOllama:
		base := cfg.EndpointURL
		if base == "" {
			base = lookupOllamaURL()
		}
		return NewOllama(base, cfg.Model), nil
	case KindGroq:
		if apiKey == "" {
			return nil, fmt.Errorf("groq: %w", ErrMissingAPIKey)
		}
		p := NewGroq(apiKey, cfg.Model)
		if cfg.EndpointURL != "" {
			p.BaseURL = cfg.EndpointURL
		}
		return p, nil
	case KindGemini:
		if apiKey == "" {
			return nil, fmt.Errorf("gemini: %w", ErrMissingAPIKey)
		}
		p := NewGemini(apiKey, cfg.Model)
		if cfg.EndpointURL != "" {
			p.BaseURL = cfg.EndpointURL
		}
		return p, nil
	case KindClaude:
		if apiKey == "" {
			return nil, fmt.Errorf("claude: %w", ErrMissingAPIKey)
		}
		p := NewAnthropic(apiKey, cfg.Model)
		if cfg.EndpointURL != "" {
			p.BaseURL = cfg.EndpointURL
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
}

// Factory builds a Provider from a Config.
type Factory func(Config) (Provider, error)
