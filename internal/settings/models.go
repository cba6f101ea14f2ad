package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/simonyos/mango/internal/llm"
)

// ProviderConfig is one saved model the user can chat with.
type ProviderConfig struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Kind        llm.Kind `json:"providerKind"`
	EndpointURL string   `json:"endpointUrl,omitempty"`
	APIKey      string   `json:"apiKey,omitempty"`
	Model       string   `json:"modelName"`
}

// Validate checks the fields each kind requires. A kind that needs an API
// key may leave it empty when the app config or environment supplies one.
func (p ProviderConfig) Validate() error {
	if _, err := llm.ParseKind(string(p.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(p.Model) == "" {
		return ErrMissingModel
	}
	if p.Kind.NeedsEndpoint() && strings.TrimSpace(p.EndpointURL) == "" {
		return ErrMissingEndpoint
	}
	if p.Kind.NeedsAPIKey() && strings.TrimSpace(llm.ResolveAPIKey(p.LLMConfig())) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// LLMConfig converts the saved config into adapter input.
func (p ProviderConfig) LLMConfig() llm.Config {
	return llm.Config{
		Kind:        p.Kind,
		EndpointURL: p.EndpointURL,
		APIKey:      p.APIKey,
		Model:       p.Model,
	}
}

// DisplayTitle returns the title, or the model name when untitled.
func (p ProviderConfig) DisplayTitle() string {
	if p.Title != "" {
		return p.Title
	}
	return p.Model
}

// Models returns every saved model in insertion order.
func (s *Store) Models(ctx context.Context) ([]ProviderConfig, error) {
	return models.list(ctx, s.db)
}

// Model returns the saved model with id.
func (s *Store) Model(ctx context.Context, id string) (ProviderConfig, error) {
	return models.get(ctx, s, id)
}

// ActiveModel returns the selected model, or nil when none is selected.
func (s *Store) ActiveModel(ctx context.Context) (*ProviderConfig, error) {
	return models.active(ctx, s.db)
}

// SaveModel validates and stores p, assigning an id to new entries.
func (s *Store) SaveModel(ctx context.Context, p ProviderConfig) (ProviderConfig, error) {
	kind, err := llm.ParseKind(string(p.Kind))
	if err != nil {
		return p, err
	}
	p.Kind = kind
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid model %q: %w", p.DisplayTitle(), err)
	}
	return models.save(ctx, s, p)
}

// DeleteModel removes a model. Deleting the active model leaves none active.
func (s *Store) DeleteModel(ctx context.Context, id string) error {
	return models.remove(ctx, s, id)
}

// UseModel selects the model with id.
func (s *Store) UseModel(ctx context.Context, id string) (ProviderConfig, error) {
	return models.use(ctx, s, id)
}

// ActiveProvider returns the adapter config of the selected model.
func (s *Store) ActiveProvider(ctx context.Context) (llm.Config, bool, error) {
	p, err := s.ActiveModel(ctx)
	if err != nil || p == nil {
		return llm.Config{}, false, err
	}
	return p.LLMConfig(), true, nil
}
