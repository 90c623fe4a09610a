package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewsAPISearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/everything" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "world affairs" {
			t.Errorf("query = %q, want 'world affairs'", q.Get("q"))
		}
		if q.Get("apiKey") != "secret" {
			t.Errorf("apiKey = %q, want 'secret'", q.Get("apiKey"))
		}
		w.Write([]byte(`{
			"status": "ok",
			"articles": [
				{"title": "First story", "url": "https://a", "description": "one"},
				{"title": "[Removed]", "url": "https://gone", "description": ""},
				{"title": "", "url": "https://empty", "description": ""},
				{"title": "Second story", "url": "https://b", "description": "two"}
			]
		}`))
	}))
	defer server.Close()

	client := NewNewsAPIClient("secret", WithNewsAPIBaseURL(server.URL), WithNewsAPITimeout(5*time.Second))

	articles, err := client.Search(context.Background(), "world affairs", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(articles) != 2 {
		t.Fatalf("got %d articles, want 2", len(articles))
	}
	if articles[0].Title != "First story" || articles[1].Title != "Second story" {
		t.Errorf("unexpected titles: %v", titlesOf(articles))
	}
}

func TestNewsAPISearchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "articles": []}`))
	}))
	defer server.Close()

	client := NewNewsAPIClient("secret", WithNewsAPIBaseURL(server.URL))
	if _, err := client.Search(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error for newsapi error status")
	}
}

func TestNewsAPISearchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewNewsAPIClient("secret", WithNewsAPIBaseURL(server.URL))
	if _, err := client.Search(context.Background(), "q", 5); err == nil {
		t.Fatal("expected error for HTTP 429")
	}
}
