package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExtractArticleText(t *testing.T) {
	htmlContent := `<!DOCTYPE html>
<html>
<head><title>Rate Decision</title></head>
<body>
<article>
<h1>Central Bank Holds Rates</h1>
<p>The central bank kept rates unchanged on Wednesday, citing persistent inflation in services.</p>
<p>Markets had priced in a cut for the following quarter.</p>
</article>
</body>
</html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(htmlContent))
	}))
	defer server.Close()

	p := NewPageReader(WithTimeout(5 * time.Second))

	content, err := p.Extract(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !strings.Contains(content, "persistent inflation") {
		t.Errorf("content missing article body, got: %q", content)
	}
}

func TestExtractContentLimit(t *testing.T) {
	htmlContent := "<html><body><p>" + strings.Repeat("x", 5000) + "</p></body></html>"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(htmlContent))
	}))
	defer server.Close()

	p := NewPageReader(WithMaxContentLength(1000))

	content, err := p.Extract(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(content) > 1000 {
		t.Errorf("content length = %d, want <= 1000", len(content))
	}
}

func TestExtractServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	p := NewPageReader()
	if _, err := p.Extract(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for server error response")
	}
}

func TestExtractInvalidURL(t *testing.T) {
	p := NewPageReader()
	if _, err := p.Extract(context.Background(), "not-a-valid-url"); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestExtractContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte("<html><body>content</body></html>"))
	}))
	defer server.Close()

	p := NewPageReader()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Extract(ctx, server.URL); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestDefaultPageReader(t *testing.T) {
	p := NewPageReader()
	if p.maxContentLen != 4000 {
		t.Errorf("default maxContentLen = %d, want 4000", p.maxContentLen)
	}
}
