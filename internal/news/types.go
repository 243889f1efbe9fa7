package news

import (
	"context"
	"fmt"
	"time"
)

// Candidate is a raw article as received from a news provider, before any
// relevance or duplicate filtering.
type Candidate struct {
	Title       string
	Description string
	URL         string
	PublishedAt time.Time
	SourceName  string
}

// Item is the public shape of an article that survived the pipeline.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      string    `json:"source"`
}

// Counters reports how many candidates survived each stage.
type Counters struct {
	Total          int `json:"total"`
	AfterRelevance int `json:"afterRelevanceFilter"`
	AfterDedup     int `json:"afterDuplicateFilter"`
}

// Feed is the output of one pipeline run.
type Feed struct {
	RunID       string    `json:"runId"`
	Items       []Item    `json:"items"`
	Counters    Counters  `json:"filtered"`
	LastUpdated time.Time `json:"lastUpdated"`
	// FetchError is set when the provider could not be reached and the feed
	// is empty for that reason.
	FetchError string `json:"fetchError,omitempty"`
}

// Source is anything able to return recent article candidates.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Candidate, error)
}

// UpstreamError is returned by a Source when the provider answered with an
// explicit error payload (bad key, quota, bad query).
type UpstreamError struct {
	Provider string
	Code     string
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}
