package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func claudeEvent(name, data string) string {
	return "event: " + name + "\ndata: " + data + "\n\n"
}

func TestAnthropicStream(t *testing.T) {
	srv, captured := sseServer(t, http.StatusOK,
		claudeEvent("message_start", `{"type":"message_start","message":{"id":"msg_1"}}`),
		claudeEvent("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`),
		claudeEvent("ping", `{"type":"ping"}`),
		claudeEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi "}}`),
		claudeEvent("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"there"}}`),
		claudeEvent("content_block_stop", `{"type":"content_block_stop","index":0}`),
		claudeEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`),
		claudeEvent("message_stop", `{"type":"message_stop"}`),
	)

	p := NewAnthropic("sk-ant", "claude-3-haiku-20240307")
	p.BaseURL = srv.URL
	ch, err := p.GenerateStream(context.Background(), Request{
		SystemPrompt: "sys",
		Messages: []Message{
			{Role: RoleUser, Content: "first"},
			{Role: RoleUser, Content: "second"},
		},
	})
	require.NoError(t, err)

	text, last := collect(t, ch)
	require.Equal(t, "Hi there", text)
	require.True(t, last.Done)

	require.Equal(t, "/messages", captured.Path())
	require.Equal(t, "sk-ant", captured.Header().Get("x-api-key"))
	require.Equal(t, anthropicVersion, captured.Header().Get("anthropic-version"))

	var body anthropicRequest
	captured.decode(t, &body)
	require.Equal(t, "sys", body.System)
	require.Equal(t, 1024, body.MaxTokens)
	require.Equal(t, []anthropicMessage{{Role: "user", Content: "first\n\nsecond"}}, body.Messages)
}

func TestAnthropicErrorEvent(t *testing.T) {
	srv, _ := sseServer(t, http.StatusOK,
		claudeEvent("content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"par"}}`),
		claudeEvent("error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`),
	)

	p := NewAnthropic("k", "m")
	p.BaseURL = srv.URL
	ch, err := p.GenerateStream(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)

	text, last := collect(t, ch)
	require.Equal(t, "par", text)

	var se *StreamError
	require.True(t, errors.As(last.Error, &se))
	require.Equal(t, "overloaded_error", se.Type)
}

func TestAnthropicRequiresKey(t *testing.T) {
	_, err := NewAnthropic("", "m").GenerateStream(context.Background(), Request{})
	require.ErrorIs(t, err, ErrMissingAPIKey)
}
