package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultNewsAPIBaseURL = "https://newsapi.org"

// NewsAPIClient queries the newsapi.org "everything" endpoint as the
// fallback search source.
type NewsAPIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewsAPIOption configures a NewsAPIClient.
type NewsAPIOption func(*NewsAPIClient)

// WithNewsAPIBaseURL sets a custom base URL (for testing).
func WithNewsAPIBaseURL(url string) NewsAPIOption {
	return func(c *NewsAPIClient) {
		c.baseURL = url
	}
}

// WithNewsAPITimeout sets the HTTP client timeout.
func WithNewsAPITimeout(d time.Duration) NewsAPIOption {
	return func(c *NewsAPIClient) {
		c.httpClient.Timeout = d
	}
}

// NewNewsAPIClient creates a NewsAPI search client.
func NewNewsAPIClient(apiKey string, opts ...NewsAPIOption) *NewsAPIClient {
	c := &NewsAPIClient{
		apiKey:     apiKey,
		baseURL:    defaultNewsAPIBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Search returns up to limit articles matching the query, newest first.
// Entries without a usable title (including NewsAPI's "[Removed]" tombstones)
// are skipped.
func (c *NewsAPIClient) Search(ctx context.Context, query string, limit int) ([]Article, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("apiKey", c.apiKey)
	params.Set("pageSize", strconv.Itoa(limit))
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")

	endpoint := fmt.Sprintf("%s/v2/everything?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var out newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Status != "ok" {
		return nil, fmt.Errorf("newsapi status %q", out.Status)
	}

	articles := make([]Article, 0, len(out.Articles))
	for _, a := range out.Articles {
		if len(articles) >= limit {
			break
		}
		title := strings.TrimSpace(a.Title)
		if title == "" || strings.Contains(title, "[Removed]") {
			continue
		}
		articles = append(articles, Article{
			Title:   title,
			Link:    a.URL,
			Summary: a.Description,
		})
	}
	return articles, nil
}
