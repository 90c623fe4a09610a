package topics

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrProtectedTopic is returned when removing the built-in default topic
// would leave the digest without any topic.
var ErrProtectedTopic = errors.New("topic is protected")

// ErrNotFound is returned when a topic key is not registered.
var ErrNotFound = errors.New("topic not found")

// DefaultKey is the built-in topic that survives deletion attempts when it
// is the last one standing.
const DefaultKey = "ai_tech"

// Topic is a named news category with its own fetch configuration. Values
// are replaced wholesale on edit, never mutated in place.
type Topic struct {
	Key   string
	Label string
	Emoji string
	// Feeds lists primary RSS sources, tried in order.
	Feeds []string
	// Query is the fallback search query used when the feeds come up short.
	Query string
}

func (t Topic) validate() error {
	if strings.TrimSpace(t.Key) == "" {
		return fmt.Errorf("topic key must not be empty")
	}
	if len(t.Feeds) == 0 && strings.TrimSpace(t.Query) == "" {
		return fmt.Errorf("topic %q needs at least one feed or a fallback query", t.Key)
	}
	return nil
}

// Registry holds the topic set, preserving insertion order. Safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byKey map[string]Topic
}

// NewRegistry creates a registry seeded with the built-in topics.
func NewRegistry() *Registry {
	r := &Registry{byKey: make(map[string]Topic)}
	for _, t := range builtins() {
		r.order = append(r.order, t.Key)
		r.byKey[t.Key] = t
	}
	return r
}

// Get returns the topic for key.
func (r *Registry) Get(key string) (Topic, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byKey[key]
	return t, ok
}

// List returns all topics in insertion order.
func (r *Registry) List() []Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Topic, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.byKey[key])
	}
	return out
}

// Upsert inserts the topic, fully replacing any existing value under the
// same key. Generated topics must not silently overwrite an existing one:
// with mangle set, a colliding key gets a deterministic numeric suffix and
// the final key is returned.
func (r *Registry) Upsert(t Topic, mangle bool) (string, error) {
	if err := t.validate(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := t.Key
	if mangle {
		for n := 2; ; n++ {
			if _, exists := r.byKey[key]; !exists {
				break
			}
			key = fmt.Sprintf("%s-%d", t.Key, n)
		}
		t.Key = key
	}

	if _, exists := r.byKey[key]; !exists {
		r.order = append(r.order, key)
	}
	r.byKey[key] = t
	return key, nil
}

// Remove deletes the topic. lastActive tells the registry the key is the
// only remaining active topic; in that case the built-in default is
// protected from deletion.
func (r *Registry) Remove(key string, lastActive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byKey[key]; !ok {
		return ErrNotFound
	}
	if key == DefaultKey && lastActive {
		return ErrProtectedTopic
	}

	delete(r.byKey, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Slugify turns a free-form topic name into a registry key.
func Slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func builtins() []Topic {
	return []Topic{
		{
			Key:   "ai_tech",
			Label: "AI Tech",
			Emoji: "🤖",
			Feeds: []string{
				"https://techcrunch.com/category/artificial-intelligence/feed/",
				"https://www.theverge.com/rss/ai-artificial-intelligence/index.xml",
				"https://feeds.feedburner.com/venturebeat/SZYF",
			},
			Query: "artificial intelligence technology",
		},
		{
			Key:   "finance",
			Label: "Finance",
			Emoji: "💰",
			Feeds: []string{
				"https://feeds.reuters.com/reuters/businessNews",
				"https://www.cnbc.com/id/10000664/device/rss/rss.html",
				"https://feeds.finance.yahoo.com/rss/2.0/headline",
			},
			Query: "finance markets economy",
		},
		{
			Key:   "geopolitics",
			Label: "GeoPolitics",
			Emoji: "🌍",
			Feeds: []string{
				"https://feeds.reuters.com/reuters/worldNews",
				"https://rss.nytimes.com/services/xml/rss/nyt/World.xml",
				"https://www.aljazeera.com/xml/rss/all.xml",
			},
			Query: "geopolitics international relations world affairs",
		},
		{
			Key:   "crypto",
			Label: "Crypto",
			Emoji: "₿",
			Feeds: []string{
				"https://cointelegraph.com/rss",
				"https://coindesk.com/arc/outboundfeeds/rss/",
				"https://decrypt.co/feed",
			},
			Query: "cryptocurrency bitcoin ethereum blockchain",
		},
	}
}
