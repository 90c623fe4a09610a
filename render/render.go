// Package render turns one topic's articles into a display payload: a
// numbered headline list plus per-article action references.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"news-digest-bot/feeds"
	"news-digest-bot/topics"
)

// Action is one actionable reference attached to a section. Either Token
// (an opaque callback payload round-tripped by the transport) or URL is
// set, never both.
type Action struct {
	Label string
	Token string
	URL   string
}

// Translator localizes headlines in a single batched round trip.
type Translator interface {
	TranslateTitles(ctx context.Context, lang string, titles []string) ([]string, error)
}

// Renderer builds section payloads. A nil translator or empty language
// disables localization.
type Renderer struct {
	translator Translator
	lang       string
}

// NewRenderer creates a section renderer.
func NewRenderer(translator Translator, lang string) *Renderer {
	return &Renderer{translator: translator, lang: lang}
}

const dividerWidth = 22

// enumMarkerRegex matches leading enumeration the model sometimes adds
// despite instructions ("1. ", "2) ", "- ").
var enumMarkerRegex = regexp.MustCompile(`^\s*(?:\d+\s*[.)]\s*|[-•]\s*)`)

// Render returns the section text and its action rows: one row of "ask
// about story #i" callbacks and one row of "open link #i" URL buttons,
// both 1-indexed in display and zero-indexed in the token.
func (r *Renderer) Render(ctx context.Context, topic topics.Topic, articles []feeds.Article) (string, [][]Action) {
	titles := make([]string, len(articles))
	for i, a := range articles {
		titles[i] = a.Title
	}
	titles = r.localize(ctx, topic.Key, titles)

	divider := strings.Repeat("―", dividerWidth)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s %s\n%s\n\n", divider, topic.Emoji, strings.ToUpper(topic.Label), divider)
	for i, title := range titles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
	}

	askRow := make([]Action, 0, len(articles))
	linkRow := make([]Action, 0, len(articles))
	for i, a := range articles {
		askRow = append(askRow, Action{
			Label: fmt.Sprintf("💬 %d", i+1),
			Token: fmt.Sprintf("ask|%s|%d", topic.Key, i),
		})
		if a.Link != "" {
			linkRow = append(linkRow, Action{
				Label: fmt.Sprintf("🔗 %d", i+1),
				URL:   a.Link,
			})
		}
	}

	rows := [][]Action{askRow}
	if len(linkRow) > 0 {
		rows = append(rows, linkRow)
	}
	return b.String(), rows
}

// localize translates titles in one batched call. The external contract is
// fuzzy: lines are defensively stripped of enumeration markers, a short
// response is padded with original titles in position, and a failed call
// falls back to the originals for the whole topic.
func (r *Renderer) localize(ctx context.Context, topicKey string, titles []string) []string {
	if r.translator == nil || r.lang == "" || len(titles) == 0 {
		return titles
	}

	lines, err := r.translator.TranslateTitles(ctx, r.lang, titles)
	if err != nil {
		slog.Warn("title translation failed, using originals", "topic", topicKey, "error", err)
		return titles
	}

	out := make([]string, len(titles))
	for i := range titles {
		if i < len(lines) {
			if line := strings.TrimSpace(enumMarkerRegex.ReplaceAllString(lines[i], "")); line != "" {
				out[i] = line
				continue
			}
		}
		out[i] = titles[i]
	}
	return out
}
