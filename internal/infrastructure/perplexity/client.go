package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"MetalsMonitor/internal/config"
	"MetalsMonitor/internal/domain"
	"MetalsMonitor/internal/ports"
)

const promptTemplate = `Search for news from the last %d hours about: %s.
Respond ONLY with a JSON array. Each element must be an object with the keys
"title", "source", "date", "summary" and "url". Use YYYY-MM-DD dates where
known. Do not include any text outside the JSON array. Return [] if there is
no relevant news.`

// Client implements ports.ArticleSource backed by the Perplexity
// chat-completions API.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.ArticleSource = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.SearchConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Search posts one news query and decodes the JSON article list the model
// returns. Any transport or parse failure is reported as a fetch error;
// the caller decides whether to continue.
func (c *Client) Search(ctx context.Context, query string, lookback time.Duration) ([]domain.RawArticle, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("%w: perplexity client misconfigured", domain.ErrConfig)
	}

	hours := int(lookback.Hours())
	if hours <= 0 {
		hours = 24
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": fmt.Sprintf(promptTemplate, hours, query)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: perplexity returned %s: %s",
			domain.ErrFetch, resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrFetch, err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("%w: response has no choices", domain.ErrFetch)
	}

	articles, err := extractArticles(decoded.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFetch, err)
	}

	return articles, nil
}

// extractArticles locates the JSON array inside the model output, which may
// be wrapped in markdown fences or surrounded by prose.
func extractArticles(content string) ([]domain.RawArticle, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in response content")
	}

	var articles []domain.RawArticle
	if err := json.Unmarshal([]byte(content[start:end+1]), &articles); err != nil {
		return nil, fmt.Errorf("unmarshal articles: %w", err)
	}

	return articles, nil
}
