package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/simonyos/mango/internal/page"
)

// PageHandler answers page messages using ex.
func PageHandler(ex *page.Extractor) Handler {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req PageRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("invalid page request: %w", err)
		}
		return ex.Extract(ctx, req.URL)
	}
}

// FetchPage asks the host behind m for the content of url.
func FetchPage(ctx context.Context, m Messenger, url string) (*page.Content, error) {
	var c page.Content
	if err := m.Request(ctx, MessagePage, PageRequest{URL: url}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
