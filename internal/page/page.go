// Package page fetches a web page and reduces it to Markdown plus the
// metadata a summary needs.
package page

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/simonyos/mango/internal/logging"
)

// maxPageSize bounds how much of a response body is read.
const maxPageSize = 5 << 20

// minArticleText is how much text readability has to find before its main
// article replaces the whole page. Shorter pages are converted as they are.
const minArticleText = 500

// ErrUnsupportedContent is returned for responses that are neither HTML nor text.
var ErrUnsupportedContent = errors.New("unsupported content type")

// Content is the readable form of a page.
type Content struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Content     string `json:"content"`
}

// Prompt renders the page as the user message of a summary turn.
func (c *Content) Prompt() string {
	var b strings.Builder
	if c.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", c.Title)
	}
	if c.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", c.Description)
	}
	b.WriteString(c.Content)
	return strings.TrimSpace(b.String())
}

// Extractor fetches and converts pages.
type Extractor struct {
	client    *http.Client
	converter *md.Converter
	log       *slog.Logger
}

// NewExtractor creates an extractor. A nil client uses a 30 second timeout.
func NewExtractor(client *http.Client, log *slog.Logger) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	conv := md.NewConverter("", true, nil)
	conv.Remove("style", "script", "noscript", "link", "iframe", "svg")
	return &Extractor{client: client, converter: conv, log: logging.OrDiscard(log)}
}

// Extract downloads rawURL and returns its Markdown content and metadata.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Content, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.1")
	req.Header.Set("User-Agent", "mango/1.0 (+page summary)")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}

	final := resp.Request.URL
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	e.log.Debug("fetched page", "url", final, "bytes", len(body), "type", mediaType)

	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return e.fromHTML(final, body)
	case strings.HasPrefix(mediaType, "text/"):
		return &Content{URL: final.String(), Title: final.String(), Content: string(body), Icon: faviconURL(final)}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, mediaType)
}

func (e *Extractor) fromHTML(base *url.URL, body []byte) (*Content, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	meta := readMeta(doc, base)

	source := string(body)
	article, err := readability.FromDocument(doc, base)
	switch {
	case err != nil:
		e.log.Debug("no readable article, converting whole page", "url", base, "error", err)
	case len(strings.TrimSpace(article.TextContent)) < minArticleText:
		e.log.Debug("article too short, converting whole page", "url", base, "length", len(article.TextContent))
	default:
		source = article.Content
		if meta.title == "" {
			meta.title = strings.TrimSpace(article.Title)
		}
	}

	markdown, err := e.converter.ConvertString(source)
	if err != nil {
		return nil, fmt.Errorf("failed to convert page: %w", err)
	}

	c := &Content{
		URL:         base.String(),
		Title:       meta.title,
		Description: meta.description,
		Keywords:    meta.keywords,
		Icon:        meta.icon,
		Content:     strings.TrimSpace(markdown),
	}
	if c.Title == "" {
		c.Title = base.String()
	}
	return c, nil
}

type pageMeta struct {
	title, ogTitle string
	description    string
	keywords       string
	icon           string
}

// readMeta walks the document for <title>, description and keyword meta tags
// and the first icon link.
func readMeta(doc *html.Node, base *url.URL) pageMeta {
	var m pageMeta

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if m.title == "" && n.FirstChild != nil {
					m.title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				name := strings.ToLower(attr(n, "name"))
				if name == "" {
					name = strings.ToLower(attr(n, "property"))
				}
				content := strings.TrimSpace(attr(n, "content"))
				switch name {
				case "description":
					m.description = content
				case "og:description":
					if m.description == "" {
						m.description = content
					}
				case "keywords":
					m.keywords = content
				case "og:title":
					m.ogTitle = content
				}
			case "link":
				if m.icon == "" && isIconRel(attr(n, "rel")) {
					if ref, err := base.Parse(attr(n, "href")); err == nil {
						m.icon = ref.String()
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if m.title == "" {
		m.title = m.ogTitle
	}
	if m.icon == "" {
		m.icon = faviconURL(base)
	}
	return m
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func isIconRel(rel string) bool {
	for _, r := range strings.Fields(strings.ToLower(rel)) {
		if r == "icon" {
			return true
		}
	}
	return false
}

func faviconURL(u *url.URL) string {
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/favicon.ico"}).String()
}
