// Package feeds retrieves articles for a topic, merging its primary RSS
// feeds with a fallback search source and deduplicating by title.
package feeds

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"news-digest-bot/topics"
)

// maxSummaryLen bounds article summaries, matching the upstream feed text
// truncation used by the digest.
const maxSummaryLen = 400

// minPrimaryArticles is the threshold below which the fallback search
// source is consulted.
const minPrimaryArticles = 3

// Article is a single fetched story. Immutable once fetched.
type Article struct {
	Title   string
	Link    string
	Summary string
}

// Item is a raw feed entry before normalization into an Article.
type Item struct {
	Title   string
	Link    string
	Summary string
}

// FeedParser fetches and parses one RSS/Atom feed.
type FeedParser interface {
	Parse(ctx context.Context, url string) ([]Item, error)
}

// SearchSource queries a keyword-based news search API.
type SearchSource interface {
	Search(ctx context.Context, query string, limit int) ([]Article, error)
}

// Fetcher pulls articles for a topic. A nil search source disables the
// fallback step.
type Fetcher struct {
	parser FeedParser
	search SearchSource
}

// NewFetcher creates a fetcher over the given sources.
func NewFetcher(parser FeedParser, search SearchSource) *Fetcher {
	return &Fetcher{parser: parser, search: search}
}

// Fetch returns up to limit articles for the topic. Primary feeds are read
// in order until limit is reached; if fewer than 3 articles were collected
// the fallback query tops the list up. Deduplication is by exact title
// match after trimming surrounding whitespace, first occurrence wins. A
// failing source is logged and contributes nothing; when every source
// fails the result is simply empty.
func (f *Fetcher) Fetch(ctx context.Context, topic topics.Topic, limit int) []Article {
	if limit <= 0 {
		return nil
	}

	var articles []Article
	seen := make(map[string]bool)

	for _, url := range topic.Feeds {
		if len(articles) >= limit {
			break
		}
		items, err := f.parser.Parse(ctx, url)
		if err != nil {
			slog.Warn("feed fetch failed", "topic", topic.Key, "url", url, "error", err)
			continue
		}
		for _, item := range items {
			if len(articles) >= limit {
				break
			}
			title := strings.TrimSpace(item.Title)
			link := strings.TrimSpace(item.Link)
			if title == "" || link == "" || seen[title] {
				continue
			}
			seen[title] = true
			articles = append(articles, Article{
				Title:   title,
				Link:    link,
				Summary: CleanSummary(item.Summary),
			})
		}
	}

	if len(articles) < minPrimaryArticles && f.search != nil && strings.TrimSpace(topic.Query) != "" {
		extra, err := f.search.Search(ctx, topic.Query, limit)
		if err != nil {
			slog.Warn("fallback search failed", "topic", topic.Key, "query", topic.Query, "error", err)
		}
		for _, a := range extra {
			if len(articles) >= limit {
				break
			}
			title := strings.TrimSpace(a.Title)
			if title == "" || seen[title] {
				continue
			}
			seen[title] = true
			a.Title = title
			a.Summary = CleanSummary(a.Summary)
			articles = append(articles, a)
		}
	}

	if len(articles) > limit {
		articles = articles[:limit]
	}
	return articles
}

// CleanSummary strips HTML markup from a feed entry summary and bounds its
// length.
func CleanSummary(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if strings.ContainsAny(text, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
		if err == nil {
			text = strings.TrimSpace(doc.Text())
		}
	}

	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxSummaryLen {
		cut := maxSummaryLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
