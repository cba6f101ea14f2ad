package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// Gemini implements Provider for Google's generateContent stream.
//
// Gemini takes the system prompt inline: it is prefixed to the live user text
// rather than sent as a separate instruction. History only carries exchanges
// that received a reply, as user/model pairs.
type Gemini struct {
	APIKey          string
	Model           string
	BaseURL         string
	MaxOutputTokens int
	client          *http.Client
}

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

// geminiContent is a single turn; roles are "user" and "model".
type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type geminiStreamResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"` // "STOP", "MAX_TOKENS", "SAFETY", etc.
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// NewGemini creates a new Gemini provider
func NewGemini(apiKey, model string) *Gemini {
	return &Gemini{
		APIKey:          apiKey,
		Model:           model,
		BaseURL:         geminiBaseURL,
		MaxOutputTokens: 10000,
		client:          newHTTPClient(),
	}
}

func (g *Gemini) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse",
		strings.TrimRight(g.BaseURL, "/"), url.PathEscape(g.Model))
}

// buildContents pairs each user message with the assistant reply that follows
// it and drops unanswered ones, then appends the live prompt.
func (g *Gemini) buildContents(req Request) []geminiContent {
	history, live := req.split()

	contents := make([]geminiContent, 0, len(history)+1)
	for i := 0; i < len(history); i++ {
		msg := history[i]
		if msg.Role != RoleUser {
			continue
		}
		if i+1 >= len(history) || history[i+1].Role != RoleAssistant {
			continue
		}
		reply := history[i+1]
		contents = append(contents,
			geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}},
			geminiContent{Role: "model", Parts: []geminiPart{{Text: reply.Content}}},
		)
		i++
	}

	prompt := live
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + ":\n" + live
	}
	contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: prompt}}})
	return contents
}

// GenerateStream calls streamGenerateContent and streams the response
func (g *Gemini) GenerateStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	if g.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if g.Model == "" {
		return nil, ErrMissingModel
	}

	body := geminiRequest{
		Contents:         g.buildContents(req),
		GenerationConfig: &generationConfig{MaxOutputTokens: g.MaxOutputTokens},
	}
	headers := map[string]string{"x-goog-api-key": g.APIKey}

	resp, err := postStream(ctx, g.client, KindGemini, g.endpoint(), headers, body)
	if err != nil {
		return nil, err
	}
	return streamEvents(ctx, resp.Body, g.decode), nil
}

func (g *Gemini) decode(_ string, data []byte) (string, bool, error) {
	var chunk geminiStreamResponse
	if err := unmarshalChunk(data, &chunk); err != nil {
		return "", false, err
	}
	if chunk.Error != nil {
		return "", false, &StreamError{Provider: KindGemini, Type: chunk.Error.Status, Message: chunk.Error.Message}
	}
	if len(chunk.Candidates) == 0 {
		return "", false, nil
	}

	cand := chunk.Candidates[0]
	var text strings.Builder
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}
	return text.String(), cand.FinishReason != "", nil
}

// ModelName returns the model being used
func (g *Gemini) ModelName() string {
	return g.Model
}
