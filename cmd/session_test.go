package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/simonyos/mango/internal/bridge"
	"github.com/simonyos/mango/internal/chat"
	"github.com/simonyos/mango/internal/config"
	"github.com/simonyos/mango/internal/llm"
	"github.com/simonyos/mango/internal/logging"
	"github.com/simonyos/mango/internal/settings"
)

// vendorServer answers chat completions with a fixed OpenAI-style stream and
// serves a small HTML page on every other path.
func vendorServer(t *testing.T, words ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><title>Orchard</title></head><body><p>Trees.</p></body></html>`))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, word := range words {
			_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"` + word + `"},"finish_reason":null}]}` + "\n\n"))
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSession(t *testing.T, viaPort bool, endpoint string) (context.Context, *session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	cfg := &config.Config{
		DataDir:     t.TempDir(),
		TurnTimeout: time.Minute,
		Bridge:      config.BridgeConfig{Mode: config.BridgeLocal, Port: "assistant"},
	}
	s, err := openSession(ctx, cfg, logging.Discard(), viaPort)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	if endpoint != "" {
		_, err = s.store.SaveModel(ctx, settings.ProviderConfig{
			Title:       "Test",
			Kind:        llm.KindCompatible,
			EndpointURL: endpoint + "/v1",
			Model:       "m",
		})
		require.NoError(t, err)
	}
	return ctx, s
}

func TestStreamTurnOverMemoryPort(t *testing.T) {
	srv := vendorServer(t, "Hello", " world")
	ctx, s := testSession(t, true, srv.URL)

	var out bytes.Buffer
	turn, err := streamTurn(ctx, s, chat.NewConversation(), &out, logging.Discard(), func(ctx context.Context, s *session, conv *chat.Conversation, sink chat.Sink) error {
		_, err := s.coord.Submit(ctx, conv, "hi", sink)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, chat.StatusComplete, turn.Status)
	require.Equal(t, "Hello world\n", out.String())
	require.Equal(t, config.BridgeLocal, s.link)
}

func TestStreamTurnWithoutModel(t *testing.T) {
	ctx, s := testSession(t, false, "")

	var out bytes.Buffer
	turn, err := streamTurn(ctx, s, chat.NewConversation(), &out, logging.Discard(), func(ctx context.Context, s *session, conv *chat.Conversation, sink chat.Sink) error {
		_, err := s.coord.Submit(ctx, conv, "hi", sink)
		return err
	})
	require.ErrorIs(t, err, chat.ErrNoActiveModel)
	require.Equal(t, chat.StatusError, turn.Status)
	require.Equal(t, chat.ErrorConfiguration, turn.Error.Kind)
}

func TestSummarizeThroughSessionMessenger(t *testing.T) {
	srv := vendorServer(t, "About trees.")
	ctx, s := testSession(t, false, srv.URL)

	c, err := bridge.FetchPage(ctx, s.messenger, srv.URL+"/page")
	require.NoError(t, err)
	require.Equal(t, "Orchard", c.Title)

	var out bytes.Buffer
	turn, err := streamTurn(ctx, s, chat.NewConversation(), &out, logging.Discard(), func(ctx context.Context, s *session, conv *chat.Conversation, sink chat.Sink) error {
		_, err := s.coord.Summarize(ctx, conv, c.Title, c.Prompt(), sink)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, chat.TurnSummary, turn.Kind)
	require.Equal(t, "About trees.", turn.AssistantText)
}

func TestOpenSessionRejectsUnknownMode(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir(), Bridge: config.BridgeConfig{Mode: "carrier-pigeon"}}
	_, err := openSession(context.Background(), cfg, logging.Discard(), true)
	require.ErrorContains(t, err, "unknown bridge mode")
}

func TestStartEmbeddedNATS(t *testing.T) {
	ns, err := startEmbeddedNATS("127.0.0.1:-1", "")
	require.NoError(t, err)
	defer ns.Shutdown()

	nc, err := bridge.Connect(bridge.NATSConfig{URL: ns.ClientURL()}, "test", nil)
	require.NoError(t, err)
	nc.Close()

	_, err = startEmbeddedNATS("no-port", "")
	require.Error(t, err)
}
