// Package digest drives one full digest run: header, per-topic fetch,
// snapshot write, render, send, footer.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"news-digest-bot/feeds"
	"news-digest-bot/render"
	"news-digest-bot/topics"
)

// Fetcher retrieves a topic's articles. Source failures are handled inside
// the pipeline; an empty result means "no stories today".
type Fetcher interface {
	Fetch(ctx context.Context, topic topics.Topic, limit int) []feeds.Article
}

// SnapshotWriter owns the digest snapshot lifecycle.
type SnapshotWriter interface {
	Reset()
	Put(key string, articles []feeds.Article)
}

// Renderer builds one topic's display payload.
type Renderer interface {
	Render(ctx context.Context, topic topics.Topic, articles []feeds.Article) (string, [][]render.Action)
}

// Sender delivers digest messages to the chat transport.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendSection(ctx context.Context, chatID int64, text string, actions [][]render.Action) error
	SendTyping(ctx context.Context, chatID int64)
}

// SettingsReader exposes the digest-relevant settings.
type SettingsReader interface {
	ActiveTopics() []string
	ArticleCount() int
}

// TopicSource resolves topic keys to their definitions.
type TopicSource interface {
	Get(key string) (topics.Topic, bool)
}

const defaultTopicTimeout = 30 * time.Second

// Runner orchestrates digest runs.
type Runner struct {
	fetcher      Fetcher
	snapshot     SnapshotWriter
	renderer     Renderer
	sender       Sender
	settings     SettingsReader
	topicSource  TopicSource
	topicTimeout time.Duration
	now          func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithTopicTimeout bounds how long a single topic's fetch may take before
// it degrades to "no stories found".
func WithTopicTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.topicTimeout = d
	}
}

// WithNow overrides the clock used for the header date stamp.
func WithNow(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a digest runner.
func NewRunner(
	fetcher Fetcher,
	snap SnapshotWriter,
	renderer Renderer,
	sender Sender,
	settings SettingsReader,
	topicSource TopicSource,
	opts ...Option,
) *Runner {
	r := &Runner{
		fetcher:      fetcher,
		snapshot:     snap,
		renderer:     renderer,
		sender:       sender,
		settings:     settings,
		topicSource:  topicSource,
		topicTimeout: defaultTopicTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one digest run for the chat. A fresh empty snapshot is
// installed before any topic is fetched, so follow-up questions that race
// the run may find a topic missing; each topic is written to the snapshot
// before it is rendered. Per-topic failures never abort the run; only a
// failed header send does.
func (r *Runner) Run(ctx context.Context, chatID int64) error {
	r.snapshot.Reset()

	count := r.settings.ArticleCount()
	slog.Info("starting digest run", "chat_id", chatID, "article_count", count)

	header := fmt.Sprintf(
		"🌅 Good morning!\n📅 %s\n\nHere are your top stories for today.\nTap 💬 on a story number to ask about it, 🔗 to read the full article.",
		r.now().Format("Monday, 02 January 2006"),
	)
	if err := r.sender.SendText(ctx, chatID, header); err != nil {
		return fmt.Errorf("send digest header: %w", err)
	}

	for _, key := range r.settings.ActiveTopics() {
		topic, ok := r.topicSource.Get(key)
		if !ok {
			slog.Warn("active topic no longer registered, skipping", "key", key)
			continue
		}

		r.sender.SendTyping(ctx, chatID)

		fetchCtx, cancel := context.WithTimeout(ctx, r.topicTimeout)
		articles := r.fetcher.Fetch(fetchCtx, topic, count)
		cancel()

		// Written before rendering so a concurrent follow-up sees the
		// topics fetched so far.
		r.snapshot.Put(key, articles)

		if len(articles) == 0 {
			placeholder := fmt.Sprintf("%s %s\n\nNo stories found today.", topic.Emoji, strings.ToUpper(topic.Label))
			if err := r.sender.SendText(ctx, chatID, placeholder); err != nil {
				slog.Warn("failed to send placeholder", "topic", key, "error", err)
			}
			continue
		}

		text, actions := r.renderer.Render(ctx, topic, articles)
		if err := r.sender.SendSection(ctx, chatID, text, actions); err != nil {
			slog.Warn("failed to send section", "topic", key, "error", err)
			continue
		}
		slog.Info("sent section", "topic", key, "articles", len(articles))
	}

	footer := "✅ That's your digest for today!\n\nTap 💬 on any story, or just type a question about the news."
	if err := r.sender.SendText(ctx, chatID, footer); err != nil {
		slog.Warn("failed to send footer", "error", err)
	}

	slog.Info("digest run complete", "chat_id", chatID)
	return nil
}
