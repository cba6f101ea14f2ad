package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/simonyos/mango/internal/llm"
)

// Each fixture ends with the vendor's own finish signal and then holds the
// connection open, so only the native signal can end the turn.
var nativeDoneFixtures = map[llm.Kind][]string{
	llm.KindCompatible: {
		`data: {"choices":[{"delta":{"content":"hi"},"finish_reason":null}]}` + "\n\n",
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}` + "\n\n",
	},
	llm.KindOllama: {
		`data: {"choices":[{"delta":{"content":"hi"},"finish_reason":null}]}` + "\n\n",
		"data: [DONE]\n\n",
	},
	llm.KindGroq: {
		`data: {"choices":[{"delta":{"content":"hi"},"finish_reason":null}]}` + "\n\n",
		`data: {"choices":[{"delta":{},"finish_reason":"stop"}]}` + "\n\n",
	},
	llm.KindGemini: {
		`data: {"candidates":[{"content":{"role":"model","parts":[{"text":"hi"}]},"finishReason":"STOP"}]}` + "\n\n",
	},
	llm.KindClaude: {
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"hi\"}}\n\n",
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n",
	},
}

func TestProviderAgnosticTermination(t *testing.T) {
	for kind, fixture := range nativeDoneFixtures {
		t.Run(string(kind), func(t *testing.T) {
			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				for _, ev := range fixture {
					fmt.Fprint(w, ev)
				}
				w.(http.Flusher).Flush()
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			defer srv.Close()
			defer close(release)

			m := NewMultiplexer(nil)
			rec := newRecorder()
			require.NoError(t, m.Run(context.Background(), TurnRequest{
				TurnID:   "t-" + string(kind),
				Provider: llm.Config{Kind: kind, EndpointURL: srv.URL, APIKey: "test-key", Model: "m"},
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
			}, rec.sink))

			events := rec.wait(t)
			require.Equal(t, []StreamEvent{deltaEvent("t-"+string(kind), "hi"), finalEvent("t-" + string(kind))}, events)
		})
	}
}
