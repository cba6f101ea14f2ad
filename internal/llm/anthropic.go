package llm

import (
	"context"
	"net/http"
	"strings"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// Anthropic implements Provider using the Claude messages API
type Anthropic struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	client    *http.Client
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Streaming event types
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"delta,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropic creates a new Anthropic provider
func NewAnthropic(apiKey, model string) *Anthropic {
	return &Anthropic{
		APIKey:    apiKey,
		Model:     model,
		BaseURL:   anthropicBaseURL,
		MaxTokens: 1024,
		client:    newHTTPClient(),
	}
}

// convertMessages merges consecutive same-role messages, since the messages
// API requires strict user/assistant alternation.
func (a *Anthropic) convertMessages(messages []Message) []anthropicMessage {
	result := make([]anthropicMessage, 0, len(messages))
	for _, msg := range messages {
		if n := len(result); n > 0 && result[n-1].Role == msg.Role {
			result[n-1].Content += "\n\n" + msg.Content
			continue
		}
		result = append(result, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}
	return result
}

// GenerateStream calls the messages API and streams the response
func (a *Anthropic) GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	if a.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if a.Model == "" {
		return nil, ErrMissingModel
	}

	body := anthropicRequest{
		Model:     a.Model,
		MaxTokens: a.MaxTokens,
		System:    req.SystemPrompt,
		Messages:  a.convertMessages(req.Messages),
		Stream:    true,
	}
	headers := map[string]string{
		"x-api-key":         a.APIKey,
		"anthropic-version": anthropicVersion,
	}

	resp, err := postStream(ctx, a.client, KindClaude, strings.TrimRight(a.BaseURL, "/")+"/messages", headers, body)
	if err != nil {
		return nil, err
	}
	return streamEvents(ctx, resp.Body, a.decode), nil
}

func (a *Anthropic) decode(event string, data []byte) (string, bool, error) {
	var ev anthropicStreamEvent
	if err := unmarshalChunk(data, &ev); err != nil {
		return "", false, err
	}
	if ev.Type == "" {
		ev.Type = event
	}

	switch ev.Type {
	case "content_block_delta":
		if ev.Delta != nil && ev.Delta.Type == "text_delta" {
			return ev.Delta.Text, false, nil
		}
	case "message_stop":
		return "", true, nil
	case "error":
		se := &StreamError{Provider: KindClaude}
		if ev.Error != nil {
			se.Type, se.Message = ev.Error.Type, ev.Error.Message
		}
		return "", false, se
	}
	return "", false, nil
}

// ModelName returns the model being used
func (a *Anthropic) ModelName() string {
	return a.Model
}
