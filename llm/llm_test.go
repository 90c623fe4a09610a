package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, replyText string, capture *messagesRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing x-api-key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		json.NewEncoder(w).Encode(messagesResponse{
			Content: []contentBlock{{Type: "text", Text: replyText}},
		})
	}))
}

func TestAnswer(t *testing.T) {
	var req messagesRequest
	server := newTestServer(t, "  It matters because of rates.  ", &req)
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL), WithModel("claude-test"))

	reply, err := client.Answer(context.Background(), "You are a news analyst.", []Turn{
		{Role: "user", Content: "why does this matter?"},
	})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if reply != "It matters because of rates." {
		t.Errorf("reply = %q", reply)
	}
	if req.System != "You are a news analyst." {
		t.Errorf("system = %q", req.System)
	}
	if req.Model != "claude-test" {
		t.Errorf("model = %q", req.Model)
	}
	if len(req.Messages) != 1 {
		t.Errorf("messages = %d, want 1", len(req.Messages))
	}
}

func TestTranslateTitlesSingleRoundTrip(t *testing.T) {
	var req messagesRequest
	server := newTestServer(t, "Primer titular\n\nSegundo titular\n", &req)
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	lines, err := client.TranslateTitles(context.Background(), "Spanish", []string{"First headline", "Second headline"})
	if err != nil {
		t.Fatalf("TranslateTitles failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "Primer titular" || lines[1] != "Segundo titular" {
		t.Errorf("lines = %v", lines)
	}
	// Both titles travel in one request.
	if len(req.Messages) != 1 {
		t.Errorf("messages = %d, want 1 batched message", len(req.Messages))
	}
}

func TestTranslateTitlesEmptyInput(t *testing.T) {
	client := NewClient("test-key", WithBaseURL("http://unused.invalid"))
	lines, err := client.TranslateTitles(context.Background(), "Spanish", nil)
	if err != nil {
		t.Fatalf("TranslateTitles failed: %v", err)
	}
	if lines != nil {
		t.Errorf("lines = %v, want nil", lines)
	}
}

func TestGenerateTopic(t *testing.T) {
	server := newTestServer(t, "```json\n{\"label\": \"Space\", \"emoji\": \"🚀\", \"query\": \"space exploration nasa launches\"}\n```", nil)
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))

	def, err := client.GenerateTopic(context.Background(), "space stuff")
	if err != nil {
		t.Fatalf("GenerateTopic failed: %v", err)
	}
	if def.Label != "Space" || def.Query != "space exploration nasa launches" {
		t.Errorf("def = %+v", def)
	}
}

func TestGenerateTopicRejectsIncomplete(t *testing.T) {
	server := newTestServer(t, `{"label": "", "emoji": "x", "query": ""}`, nil)
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	if _, err := client.GenerateTopic(context.Background(), "x"); err == nil {
		t.Fatal("expected error for incomplete topic definition")
	}
}

func TestAnswerServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	if _, err := client.Answer(context.Background(), "", []Turn{{Role: "user", Content: "q"}}); err == nil {
		t.Fatal("expected error for server error")
	}
}

func TestStripMarkdownCodeBlock(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"  plain  ", "plain"},
	}
	for _, tt := range tests {
		if got := stripMarkdownCodeBlock(tt.input); got != tt.want {
			t.Errorf("stripMarkdownCodeBlock(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
