// Package llm holds the streaming adapters for every supported provider kind.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Kind identifies a provider wire protocol.
type Kind string

const (
	KindCompatible Kind = "local-compatible"
	KindOllama     Kind = "ollama"
	KindGemini     Kind = "gemini"
	KindGroq       Kind = "groq"
	KindClaude     Kind = "claude"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindCompatible, KindOllama, KindGemini, KindGroq, KindClaude}

// ParseKind resolves a kind name, accepting the "openai" alias.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local-compatible", "compatible", "openai":
		return KindCompatible, nil
	case "ollama":
		return KindOllama, nil
	case "gemini":
		return KindGemini, nil
	case "groq":
		return KindGroq, nil
	case "claude", "anthropic":
		return KindClaude, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// NeedsEndpoint reports whether the kind has no default endpoint.
func (k Kind) NeedsEndpoint() bool {
	return k == KindCompatible
}

// NeedsAPIKey reports whether the vendor rejects unauthenticated calls.
func (k Kind) NeedsAPIKey() bool {
	return k == KindGemini || k == KindGroq || k == KindClaude
}

// Config is everything an adapter needs to reach one model.
type Config struct {
	Kind        Kind   `json:"kind"`
	EndpointURL string `json:"endpointUrl,omitempty"`
	APIKey      string `json:"apiKey,omitempty"`
	Model       string `json:"model"`
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // "user", "assistant"
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is one streaming call. Messages are oldest first and end with the
// live user message.
type Request struct {
	SystemPrompt string
	Messages     []Message
}

// split returns the prior history and the live user text.
func (r Request) split() ([]Message, string) {
	if len(r.Messages) == 0 {
		return nil, ""
	}
	last := r.Messages[len(r.Messages)-1]
	if last.Role != RoleUser {
		return r.Messages, ""
	}
	return r.Messages[:len(r.Messages)-1], last.Content
}

// StreamChunk represents a piece of streaming output
type StreamChunk struct {
	Text  string // Text content
	Done  bool   // True if this is the final chunk
	Error error  // Error if any
}

// Provider is the interface for LLM backends.
//
// GenerateStream returns a channel that yields text deltas in vendor order and
// then exactly one chunk with Done or Error set, after which it is closed.
type Provider interface {
	GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}
