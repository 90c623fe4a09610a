// Package llm is the language-model collaborator: follow-up Q&A, batched
// headline translation, and topic definition generation via the Anthropic
// Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	defaultModel   = "claude-sonnet-4-20250514"
	defaultBaseURL = "https://api.anthropic.com"

	apiVersion      = "2023-06-01"
	answerMaxTokens = 400
	batchMaxTokens  = 1000
)

// Turn is one conversation message.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TopicDef is a generated topic definition.
type TopicDef struct {
	Label string `json:"label"`
	Emoji string `json:"emoji"`
	Query string `json:"query"`
}

// Client talks to the Anthropic Messages API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the Claude model to use.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// NewClient creates a Claude API client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Answer sends the conversation to Claude and returns the reply text.
func (c *Client) Answer(ctx context.Context, system string, turns []Turn) (string, error) {
	return c.complete(ctx, system, turns, answerMaxTokens)
}

// TranslateTitles translates article titles into lang in a single round
// trip. The response is expected to contain one line per title in the
// input order; the caller is responsible for padding short responses.
func (c *Client) TranslateTitles(ctx context.Context, lang string, titles []string) ([]string, error) {
	if len(titles) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Translate these %d news headlines into %s.\n", len(titles), lang)
	b.WriteString("Reply with exactly one translated headline per line, in the same order, with no numbering and no commentary.\n\n")
	for i, t := range titles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}

	text, err := c.complete(ctx, "", []Turn{{Role: "user", Content: b.String()}}, batchMaxTokens)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

// GenerateTopic builds a topic definition for a user-supplied topic name.
func (c *Client) GenerateTopic(ctx context.Context, name string) (TopicDef, error) {
	prompt := fmt.Sprintf(`The user wants a daily news digest section for the topic %q.

Respond with JSON only, in this exact format:
{"label": "Short Display Name", "emoji": "one emoji", "query": "a 3-6 word news search query for this topic"}`, name)

	text, err := c.complete(ctx, "", []Turn{{Role: "user", Content: prompt}}, answerMaxTokens)
	if err != nil {
		return TopicDef{}, err
	}

	var def TopicDef
	if err := json.Unmarshal([]byte(stripMarkdownCodeBlock(text)), &def); err != nil {
		return TopicDef{}, fmt.Errorf("parse topic JSON: %w", err)
	}
	if strings.TrimSpace(def.Label) == "" || strings.TrimSpace(def.Query) == "" {
		return TopicDef{}, fmt.Errorf("generated topic is incomplete")
	}
	return def, nil
}

func (c *Client) complete(ctx context.Context, system string, turns []Turn, maxTokens int) (string, error) {
	reqBody := messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  turns,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Content) == 0 {
		return "", fmt.Errorf("empty response content")
	}
	return strings.TrimSpace(out.Content[0].Text), nil
}

var codeBlockRegex = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*(.+?)\\s*```\\s*$")

func stripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if matches := codeBlockRegex.FindStringSubmatch(s); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return s
}

// Anthropic API types

type messagesRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    string `json:"system,omitempty"`
	Messages  []Turn `json:"messages"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
