// Package snapshot retains the most recent digest run's articles per topic
// so follow-up questions can be grounded in the exact text that was sent.
package snapshot

import (
	"errors"
	"sync"

	"news-digest-bot/feeds"
)

// ErrNotFound is returned when the requested topic or article index is not
// in the current snapshot.
var ErrNotFound = errors.New("article not found in snapshot")

// Store holds the current digest snapshot. A new run replaces the whole
// mapping at its start, so a mid-run reader may see topics appear one by
// one; it never sees a half-written article list for any single topic.
type Store struct {
	mu     sync.RWMutex
	order  []string
	topics map[string][]feeds.Article
}

// NewStore creates an empty snapshot store.
func NewStore() *Store {
	return &Store{topics: make(map[string][]feeds.Article)}
}

// Reset discards the previous snapshot and starts a fresh one. Called at
// the beginning of every digest run.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.topics = make(map[string][]feeds.Article)
}

// Put records the fetch result for one topic. The write is atomic per key;
// a repeated Put for the same key within a run is last-writer-wins.
func (s *Store) Put(key string, articles []feeds.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.topics[key]; !exists {
		s.order = append(s.order, key)
	}
	s.topics[key] = articles
}

// Article returns the article at index for the topic, or ErrNotFound when
// the topic is absent (for example mid-run) or the index is stale.
func (s *Store) Article(key string, index int) (feeds.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	articles, ok := s.topics[key]
	if !ok || index < 0 || index >= len(articles) {
		return feeds.Article{}, ErrNotFound
	}
	return articles[index], nil
}

// Topics returns the topic keys currently in the snapshot, in the order
// they were populated.
func (s *Store) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// All returns a copy of the whole snapshot for whole-digest grounding.
func (s *Store) All() map[string][]feeds.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]feeds.Article, len(s.topics))
	for key, articles := range s.topics {
		copied := make([]feeds.Article, len(articles))
		copy(copied, articles)
		out[key] = copied
	}
	return out
}
