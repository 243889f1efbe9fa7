// Package newsapi is a news.Source backed by the NewsAPI /v2/everything
// endpoint.
package newsapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/macrotracker/internal/news"
	"github.com/deusflow/macrotracker/internal/ratelimit"
	"github.com/deusflow/macrotracker/internal/sources"
)

const (
	Provider        = "newsapi"
	DefaultBaseURL  = "https://newsapi.org"
	DefaultPageSize = 50

	// Query selects macro-relevant coverage before local filtering.
	Query = `gold OR "federal reserve" OR inflation OR economy OR "interest rates" OR unemployment OR GDP OR recession`
)

type Config struct {
	APIKey   string
	BaseURL  string
	PageSize int
	Timeout  time.Duration
	Limiter  *ratelimit.Limiter
}

type Client struct {
	sources.Client
	apiKey   string
	pageSize int
}

var _ news.Source = (*Client)(nil)

func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	size := cfg.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Client{
		Client: sources.Client{
			Provider: Provider,
			BaseURL:  strings.TrimRight(base, "/"),
			HTTP:     sources.NewHTTPClient(cfg.Timeout),
			Limiter:  cfg.Limiter,
		},
		apiKey:   cfg.APIKey,
		pageSize: size,
	}
}

func (c *Client) Name() string { return Provider }

type article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

type everythingResponse struct {
	Status   string    `json:"status"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Articles []article `json:"articles"`
}

// Fetch returns the latest articles matching Query. An explicit error
// payload is returned as *news.UpstreamError; a response without an
// article list yields no candidates.
func (c *Client) Fetch(ctx context.Context) ([]news.Candidate, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%s: %w", Provider, sources.ErrNoAPIKey)
	}

	q := url.Values{}
	q.Set("q", Query)
	q.Set("language", "en")
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v2/everything?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	var resp everythingResponse
	// NewsAPI reports key and quota problems as JSON with a 4xx status.
	anyStatus := func(int) bool { return true }
	if err := c.DoJSON(ctx, req, &resp, anyStatus); err != nil {
		return nil, err
	}

	if resp.Status == "error" {
		return nil, &news.UpstreamError{Provider: Provider, Code: resp.Code, Message: resp.Message}
	}

	out := make([]news.Candidate, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		out = append(out, news.Candidate{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			PublishedAt: parseTime(a.PublishedAt),
			SourceName:  a.Source.Name,
		})
	}
	return out, nil
}

// parseTime returns the zero time for missing or malformed timestamps, which
// the pipeline treats as incomplete.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
