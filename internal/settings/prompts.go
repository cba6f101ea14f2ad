package settings

import (
	"context"
	"fmt"
	"strings"
)

// PromptTemplate is a named system prompt.
type PromptTemplate struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	SystemPrompt string `json:"systemPrompt"`
}

// Validate checks that the template has a title and a prompt.
func (p PromptTemplate) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrMissingTitle
	}
	if strings.TrimSpace(p.SystemPrompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// Prompts returns every saved prompt template in insertion order.
func (s *Store) Prompts(ctx context.Context) ([]PromptTemplate, error) {
	return prompts.list(ctx, s.db)
}

// Prompt returns the template with id.
func (s *Store) Prompt(ctx context.Context, id string) (PromptTemplate, error) {
	return prompts.get(ctx, s, id)
}

// ActivePrompt returns the selected template, or nil when none is selected.
func (s *Store) ActivePrompt(ctx context.Context) (*PromptTemplate, error) {
	return prompts.active(ctx, s.db)
}

// SavePrompt validates and stores p, assigning an id to new entries.
func (s *Store) SavePrompt(ctx context.Context, p PromptTemplate) (PromptTemplate, error) {
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid prompt %q: %w", p.Title, err)
	}
	return prompts.save(ctx, s, p)
}

// DeletePrompt removes a template. Deleting the active one leaves none active.
func (s *Store) DeletePrompt(ctx context.Context, id string) error {
	return prompts.remove(ctx, s, id)
}

// UsePrompt selects the template with id.
func (s *Store) UsePrompt(ctx context.Context, id string) (PromptTemplate, error) {
	return prompts.use(ctx, s, id)
}

// ActiveSystemPrompt returns the selected template's system prompt.
func (s *Store) ActiveSystemPrompt(ctx context.Context) (string, bool, error) {
	p, err := s.ActivePrompt(ctx)
	if err != nil || p == nil {
		return "", false, err
	}
	return p.SystemPrompt, true, nil
}
