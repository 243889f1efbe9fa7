package news

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/macrotracker/internal/logger"
	"github.com/deusflow/macrotracker/internal/metrics"
)

const (
	DefaultLimit   = 20
	DefaultTimeout = 10 * time.Second
)

// Config tunes a Pipeline.
type Config struct {
	// Limit caps the number of items in a feed.
	Limit int
	// Timeout bounds the provider fetch.
	Timeout time.Duration
}

// Pipeline fetches candidates from a Source and shapes them into a Feed.
type Pipeline struct {
	source Source
	cfg    Config
	now    func() time.Time
}

// NewPipeline creates a pipeline over src. Zero config values fall back to
// DefaultLimit and DefaultTimeout.
func NewPipeline(src Source, cfg Config) *Pipeline {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Pipeline{source: src, cfg: cfg, now: time.Now}
}

// Run performs one fetch and processes the result.
//
// A provider that cannot be reached yields an empty feed with FetchError
// set. An explicit provider error (*UpstreamError) is returned as an error.
func (p *Pipeline) Run(ctx context.Context) (Feed, error) {
	start := time.Now()
	defer func() {
		metrics.Global.RecordProcessingTime(time.Since(start))
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	candidates, err := p.source.Fetch(fetchCtx)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			metrics.Global.IncrementSourceFailures(p.source.Name())
			metrics.Global.SetError(err.Error())
			return Feed{}, fmt.Errorf("news source %s: %w", p.source.Name(), err)
		}

		logger.Warn("news fetch failed, returning empty feed", "source", p.source.Name(), "error", err)
		metrics.Global.IncrementSourceFailures(p.source.Name())
		feed := Process(nil, p.cfg.Limit, p.now())
		feed.FetchError = err.Error()
		return feed, nil
	}

	feed := Process(candidates, p.cfg.Limit, p.now())
	metrics.Global.RecordPipeline(feed.Counters.Total, feed.Counters.AfterRelevance, feed.Counters.AfterDedup)
	metrics.Global.SetLastRun()

	logger.Info("news pipeline finished",
		"source", p.source.Name(),
		"run_id", feed.RunID,
		"total", feed.Counters.Total,
		"relevant", feed.Counters.AfterRelevance,
		"unique", feed.Counters.AfterDedup,
		"items", len(feed.Items),
	)
	return feed, nil
}

// Process runs the filtering stages over candidates and returns at most
// limit items, most recent first. generatedAt stamps the item ids.
func Process(candidates []Candidate, limit int, generatedAt time.Time) Feed {
	if limit <= 0 {
		limit = DefaultLimit
	}

	valid := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if isComplete(c) {
			valid = append(valid, c)
		}
	}

	relevant := FilterRelevant(valid)
	unique := Deduplicate(relevant)

	sorted := make([]Candidate, len(unique))
	copy(sorted, unique)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	items := make([]Item, 0, len(sorted))
	for i, c := range sorted {
		items = append(items, Item{
			ID:          fmt.Sprintf("news-%d-%d", i, generatedAt.UnixMilli()),
			Title:       strings.TrimSpace(c.Title),
			Description: strings.TrimSpace(c.Description),
			URL:         c.URL,
			PublishedAt: c.PublishedAt,
			Source:      c.SourceName,
		})
	}

	return Feed{
		RunID:       uuid.NewString(),
		Items:       items,
		LastUpdated: generatedAt,
		Counters: Counters{
			Total:          len(candidates),
			AfterRelevance: len(relevant),
			AfterDedup:     len(unique),
		},
	}
}

func isComplete(c Candidate) bool {
	return strings.TrimSpace(c.Title) != "" &&
		c.URL != "" &&
		c.SourceName != "" &&
		!c.PublishedAt.IsZero()
}
