package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"news-digest-bot/feeds"
	"news-digest-bot/render"
	"news-digest-bot/topics"
)

// Mocks

type mockFetcher struct {
	results map[string][]feeds.Article
	limits  []int
}

func (m *mockFetcher) Fetch(ctx context.Context, topic topics.Topic, limit int) []feeds.Article {
	m.limits = append(m.limits, limit)
	return m.results[topic.Key]
}

type mockSnapshot struct {
	resets int
	puts   []string
	data   map[string][]feeds.Article
}

func newMockSnapshot() *mockSnapshot {
	return &mockSnapshot{data: make(map[string][]feeds.Article)}
}

func (m *mockSnapshot) Reset() { m.resets++ }

func (m *mockSnapshot) Put(key string, articles []feeds.Article) {
	m.puts = append(m.puts, key)
	m.data[key] = articles
}

type mockRenderer struct {
	rendered []string
}

func (m *mockRenderer) Render(ctx context.Context, topic topics.Topic, articles []feeds.Article) (string, [][]render.Action) {
	m.rendered = append(m.rendered, topic.Key)
	return "section:" + topic.Key, [][]render.Action{{{Label: "💬 1", Token: "ask|" + topic.Key + "|0"}}}
}

type sentMessage struct {
	text    string
	section bool
}

type mockSender struct {
	messages  []sentMessage
	headerErr error
}

func (m *mockSender) SendText(ctx context.Context, chatID int64, text string) error {
	if m.headerErr != nil && len(m.messages) == 0 {
		return m.headerErr
	}
	m.messages = append(m.messages, sentMessage{text: text})
	return nil
}

func (m *mockSender) SendSection(ctx context.Context, chatID int64, text string, actions [][]render.Action) error {
	m.messages = append(m.messages, sentMessage{text: text, section: true})
	return nil
}

func (m *mockSender) SendTyping(ctx context.Context, chatID int64) {}

type mockSettings struct {
	active []string
	count  int
}

func (m *mockSettings) ActiveTopics() []string { return m.active }
func (m *mockSettings) ArticleCount() int      { return m.count }

type mockTopicSource struct {
	topics map[string]topics.Topic
}

func (m *mockTopicSource) Get(key string) (topics.Topic, bool) {
	t, ok := m.topics[key]
	return t, ok
}

func articles(titles ...string) []feeds.Article {
	out := make([]feeds.Article, 0, len(titles))
	for _, t := range titles {
		out = append(out, feeds.Article{Title: t, Link: "https://" + t})
	}
	return out
}

func testRunner(fetcher *mockFetcher, snap *mockSnapshot, sender *mockSender, active []string) (*Runner, *mockRenderer) {
	renderer := &mockRenderer{}
	source := &mockTopicSource{topics: map[string]topics.Topic{
		"ai_tech":     {Key: "ai_tech", Label: "AI Tech", Emoji: "🤖", Query: "ai"},
		"finance":     {Key: "finance", Label: "Finance", Emoji: "💰", Query: "money"},
		"geopolitics": {Key: "geopolitics", Label: "GeoPolitics", Emoji: "🌍", Query: "world"},
	}}
	r := NewRunner(fetcher, snap, renderer, sender, &mockSettings{active: active, count: 5}, source,
		WithNow(func() time.Time { return time.Date(2026, 8, 27, 7, 0, 0, 0, time.UTC) }),
	)
	return r, renderer
}

func TestRunHappyPath(t *testing.T) {
	fetcher := &mockFetcher{results: map[string][]feeds.Article{
		"ai_tech": articles("a1", "a2"),
		"finance": articles("f1"),
	}}
	snap := newMockSnapshot()
	sender := &mockSender{}

	r, renderer := testRunner(fetcher, snap, sender, []string{"ai_tech", "finance"})
	if err := r.Run(context.Background(), 99); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if snap.resets != 1 {
		t.Errorf("snapshot resets = %d, want 1", snap.resets)
	}
	if len(snap.puts) != 2 || snap.puts[0] != "ai_tech" || snap.puts[1] != "finance" {
		t.Errorf("snapshot puts = %v", snap.puts)
	}
	if len(renderer.rendered) != 2 {
		t.Errorf("rendered topics = %v, want 2", renderer.rendered)
	}

	// header + 2 sections + footer
	if len(sender.messages) != 4 {
		t.Fatalf("sent %d messages, want 4", len(sender.messages))
	}
	if !strings.Contains(sender.messages[0].text, "27 August 2026") {
		t.Errorf("header missing date stamp: %q", sender.messages[0].text)
	}
	if !sender.messages[1].section || !sender.messages[2].section {
		t.Error("sections not sent as section messages")
	}
	if !strings.Contains(sender.messages[3].text, "digest for today") {
		t.Errorf("footer = %q", sender.messages[3].text)
	}
}

func TestRunEmptyTopicSendsPlaceholderAndContinues(t *testing.T) {
	fetcher := &mockFetcher{results: map[string][]feeds.Article{
		"ai_tech":     nil, // every source failed
		"geopolitics": articles("g1"),
	}}
	snap := newMockSnapshot()
	sender := &mockSender{}

	r, renderer := testRunner(fetcher, snap, sender, []string{"ai_tech", "geopolitics"})
	if err := r.Run(context.Background(), 99); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var placeholder string
	for _, m := range sender.messages {
		if strings.Contains(m.text, "No stories found") {
			placeholder = m.text
		}
	}
	if placeholder == "" {
		t.Fatal("no placeholder sent for empty topic")
	}
	if !strings.Contains(placeholder, "AI TECH") {
		t.Errorf("placeholder names wrong topic: %q", placeholder)
	}

	// The empty topic is still recorded in the snapshot, and the run
	// proceeded to the next topic.
	if len(snap.puts) != 2 {
		t.Errorf("snapshot puts = %v, want both topics", snap.puts)
	}
	if len(renderer.rendered) != 1 || renderer.rendered[0] != "geopolitics" {
		t.Errorf("rendered = %v, want [geopolitics]", renderer.rendered)
	}
}

func TestRunSkipsUnregisteredTopic(t *testing.T) {
	fetcher := &mockFetcher{results: map[string][]feeds.Article{"finance": articles("f1")}}
	snap := newMockSnapshot()
	sender := &mockSender{}

	r, _ := testRunner(fetcher, snap, sender, []string{"removed_topic", "finance"})
	if err := r.Run(context.Background(), 99); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(snap.puts) != 1 || snap.puts[0] != "finance" {
		t.Errorf("snapshot puts = %v, want [finance]", snap.puts)
	}
}

func TestRunHeaderFailureAborts(t *testing.T) {
	fetcher := &mockFetcher{}
	snap := newMockSnapshot()
	sender := &mockSender{headerErr: errors.New("transport down")}

	r, _ := testRunner(fetcher, snap, sender, []string{"ai_tech"})
	if err := r.Run(context.Background(), 99); err == nil {
		t.Fatal("expected error when header send fails")
	}
	if len(snap.puts) != 0 {
		t.Errorf("topics fetched despite aborted run: %v", snap.puts)
	}
}

func TestRunUsesConfiguredArticleCount(t *testing.T) {
	fetcher := &mockFetcher{results: map[string][]feeds.Article{"ai_tech": articles("a")}}
	snap := newMockSnapshot()
	sender := &mockSender{}

	r, _ := testRunner(fetcher, snap, sender, []string{"ai_tech"})
	if err := r.Run(context.Background(), 99); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(fetcher.limits) != 1 || fetcher.limits[0] != 5 {
		t.Errorf("fetch limits = %v, want [5]", fetcher.limits)
	}
}
