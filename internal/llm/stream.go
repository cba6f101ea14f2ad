package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default timeout for the response headers of a streaming request. The body
// itself is bounded by the caller's context.
const defaultHeaderTimeout = 2 * time.Minute

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: defaultHeaderTimeout,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// postStream sends a JSON body and returns the open response once the vendor
// has answered with a 2xx status.
func postStream(ctx context.Context, client *http.Client, kind Kind, url string, headers map[string]string, payload any) (*http.Response, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &APIError{Provider: kind, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// decodeFunc turns one SSE event into a text delta. done marks the vendor's
// finish signal.
type decodeFunc func(event string, data []byte) (text string, done bool, err error)

// streamEvents pumps SSE events from body into a chunk channel. Exhausting the
// body counts as a normal finish.
func streamEvents(ctx context.Context, body io.ReadCloser, decode decodeFunc) <-chan StreamChunk {
	chunks := make(chan StreamChunk)

	go func() {
		defer close(chunks)
		defer body.Close()

		send := func(c StreamChunk) bool {
			select {
			case chunks <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		reader := newSSEReader(body)
		for {
			event, data, err := reader.Next()
			if err == io.EOF {
				send(StreamChunk{Done: true})
				return
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				send(StreamChunk{Error: fmt.Errorf("error reading stream: %w", err)})
				return
			}

			text, done, err := decode(event, data)
			if err != nil {
				send(StreamChunk{Error: err})
				return
			}
			if text != "" && !send(StreamChunk{Text: text}) {
				return
			}
			if done {
				send(StreamChunk{Done: true})
				return
			}
		}
	}()

	return chunks
}

// unmarshalChunk decodes a payload, tagging failures as malformed.
func unmarshalChunk(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	return nil
}
