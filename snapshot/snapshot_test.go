package snapshot

import (
	"errors"
	"testing"

	"news-digest-bot/feeds"
)

func TestPutAndArticle(t *testing.T) {
	s := NewStore()
	s.Put("ai_tech", []feeds.Article{
		{Title: "one", Link: "https://1"},
		{Title: "two", Link: "https://2"},
	})

	got, err := s.Article("ai_tech", 1)
	if err != nil {
		t.Fatalf("Article failed: %v", err)
	}
	if got.Title != "two" {
		t.Errorf("Title = %q, want two", got.Title)
	}
}

func TestArticleNotFound(t *testing.T) {
	s := NewStore()
	s.Put("ai_tech", []feeds.Article{{Title: "one"}})

	tests := []struct {
		key   string
		index int
	}{
		{"finance", 0},  // topic not yet populated
		{"ai_tech", 1},  // stale index
		{"ai_tech", -1}, // nonsense index
	}
	for _, tt := range tests {
		if _, err := s.Article(tt.key, tt.index); !errors.Is(err, ErrNotFound) {
			t.Errorf("Article(%q, %d) = %v, want ErrNotFound", tt.key, tt.index, err)
		}
	}
}

func TestResetInvalidatesPreviousRun(t *testing.T) {
	s := NewStore()
	s.Put("ai_tech", []feeds.Article{{Title: "old"}})

	s.Reset()

	if _, err := s.Article("ai_tech", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("article survived Reset: %v", err)
	}
	if len(s.Topics()) != 0 {
		t.Errorf("Topics = %v, want empty after Reset", s.Topics())
	}
}

func TestTopicsOrder(t *testing.T) {
	s := NewStore()
	s.Put("finance", nil)
	s.Put("ai_tech", []feeds.Article{{Title: "a"}})
	s.Put("finance", []feeds.Article{{Title: "b"}}) // rewrite, keeps position

	got := s.Topics()
	want := []string{"finance", "ai_tech"}
	if len(got) != len(want) {
		t.Fatalf("Topics = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Topics[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAllReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Put("ai_tech", []feeds.Article{{Title: "original"}})

	all := s.All()
	all["ai_tech"][0].Title = "mutated"

	got, _ := s.Article("ai_tech", 0)
	if got.Title != "original" {
		t.Errorf("snapshot mutated through All copy: %q", got.Title)
	}
}
