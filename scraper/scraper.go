// Package scraper extracts readable article text from story links. The
// conversation engine uses it to deepen the grounding of story questions;
// callers treat any failure as "no extra context".
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const defaultMaxContentLen = 4000

// PageReader fetches a page and extracts its readable text.
type PageReader struct {
	httpClient    *http.Client
	maxContentLen int
}

// Option configures a PageReader.
type Option func(*PageReader)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *PageReader) {
		p.httpClient.Timeout = d
	}
}

// WithMaxContentLength bounds the extracted text.
func WithMaxContentLength(n int) Option {
	return func(p *PageReader) {
		p.maxContentLen = n
	}
}

// NewPageReader creates a page reader.
func NewPageReader(opts ...Option) *PageReader {
	p := &PageReader{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		maxContentLen: defaultMaxContentLen,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract returns the readable text content of the page at rawURL,
// truncated to the configured maximum.
func (p *PageReader) Extract(ctx context.Context, rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; NewsDigestBot/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsedURL)
	if err != nil {
		return "", fmt.Errorf("parse content: %w", err)
	}

	content := strings.TrimSpace(article.TextContent)
	if len(content) > p.maxContentLen {
		content = content[:p.maxContentLen]
	}
	return content, nil
}
