package feeds

import (
	"context"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSParser parses RSS/Atom feeds over HTTP using gofeed.
type RSSParser struct {
	parser *gofeed.Parser
}

// RSSOption configures an RSSParser.
type RSSOption func(*RSSParser)

// WithRSSTimeout sets the HTTP client timeout used for feed fetches.
func WithRSSTimeout(d time.Duration) RSSOption {
	return func(p *RSSParser) {
		p.parser.Client.Timeout = d
	}
}

// NewRSSParser creates an RSS feed parser.
func NewRSSParser(opts ...RSSOption) *RSSParser {
	fp := gofeed.NewParser()
	fp.Client = &http.Client{Timeout: 15 * time.Second}
	fp.UserAgent = "Mozilla/5.0 (compatible; NewsDigestBot/1.0)"

	p := &RSSParser{parser: fp}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse fetches the feed at url and returns its entries.
func (p *RSSParser) Parse(ctx context.Context, url string) ([]Item, error) {
	feed, err := p.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}
		items = append(items, Item{
			Title:   entry.Title,
			Link:    entry.Link,
			Summary: summary,
		})
	}
	return items, nil
}
