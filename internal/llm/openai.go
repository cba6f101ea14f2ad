package llm

import (
	"context"
	"net/http"
	"strings"
)

const (
	defaultOllamaURL = "http://localhost:11434"
	groqBaseURL      = "https://api.groq.com/openai/v1"
)

// OpenAI implements Provider for any endpoint speaking the OpenAI chat
// completions stream. Ollama and Groq are served by the same adapter.
type OpenAI struct {
	Kind        Kind
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	TopP        float64
	client      *http.Client
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	TopP        float64         `json:"top_p,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *openAIError `json:"error,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAICompatible creates a provider for a self-hosted compatible endpoint.
func NewOpenAICompatible(endpoint, apiKey, model string) *OpenAI {
	return &OpenAI{
		Kind:        KindCompatible,
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     endpoint,
		Temperature: 0.7,
		MaxTokens:   10240,
		client:      newHTTPClient(),
	}
}

// NewOllama creates a provider for a local Ollama server. An empty baseURL
// uses the default localhost port.
func NewOllama(baseURL, model string) *OpenAI {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	o := NewOpenAICompatible(ollamaAPIBase(baseURL), "ollama", model)
	o.Kind = KindOllama
	return o
}

// NewGroq creates a provider for Groq's hosted endpoint.
func NewGroq(apiKey, model string) *OpenAI {
	return &OpenAI{
		Kind:        KindGroq,
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     groqBaseURL,
		Temperature: 0.7,
		MaxTokens:   1024,
		TopP:        1,
		client:      newHTTPClient(),
	}
}

func ollamaAPIBase(u string) string {
	u = strings.TrimRight(u, "/")
	if strings.HasSuffix(u, "/v1") {
		return u
	}
	return u + "/v1"
}

func (o *OpenAI) endpoint() string {
	base := strings.TrimRight(o.BaseURL, "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	return base + "/chat/completions"
}

func (o *OpenAI) convertMessages(req Request) []openAIMessage {
	result := make([]openAIMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		result = append(result, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.Messages {
		result = append(result, openAIMessage(msg))
	}
	return result
}

// GenerateStream calls the chat completions endpoint and streams the response
func (o *OpenAI) GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	if o.BaseURL == "" {
		return nil, ErrMissingEndpoint
	}
	if o.Kind.NeedsAPIKey() && o.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if o.Model == "" {
		return nil, ErrMissingModel
	}

	body := openAIRequest{
		Model:       o.Model,
		Messages:    o.convertMessages(req),
		Stream:      true,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
		TopP:        o.TopP,
	}

	headers := map[string]string{}
	if o.APIKey != "" {
		headers["Authorization"] = "Bearer " + o.APIKey
	}

	resp, err := postStream(ctx, o.client, o.Kind, o.endpoint(), headers, body)
	if err != nil {
		return nil, err
	}
	return streamEvents(ctx, resp.Body, o.decode), nil
}

func (o *OpenAI) decode(_ string, data []byte) (string, bool, error) {
	if string(data) == "[DONE]" {
		return "", true, nil
	}

	var chunk openAIStreamResponse
	if err := unmarshalChunk(data, &chunk); err != nil {
		return "", false, err
	}
	if chunk.Error != nil {
		return "", false, &StreamError{Provider: o.Kind, Type: chunk.Error.Type, Message: chunk.Error.Message}
	}
	if len(chunk.Choices) == 0 {
		return "", false, nil
	}

	choice := chunk.Choices[0]
	done := choice.FinishReason != nil && *choice.FinishReason != ""
	return choice.Delta.Content, done, nil
}

// ModelName returns the model being used
func (o *OpenAI) ModelName() string {
	return o.Model
}
