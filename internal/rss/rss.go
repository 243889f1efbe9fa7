package rss

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/macrotracker/internal/logger"
	"github.com/deusflow/macrotracker/internal/news"
)

// Name is the provider name reported by Source.
const Name = "rss"

// ErrNoFeeds is returned when a Source has nothing to read.
var ErrNoFeeds = errors.New("no rss feeds configured")

// FeedsConfig is YAML config structure
// feeds:
//   - https://...
type FeedsConfig struct {
	Feeds []string `yaml:"feeds"`
}

// LoadFeeds reads RSS feeds list from YAML file
func LoadFeeds(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FeedsConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	feeds := cfg.Feeds[:0]
	for _, u := range cfg.Feeds {
		if u = strings.TrimSpace(u); u != "" {
			feeds = append(feeds, u)
		}
	}
	return feeds, nil
}

// Source is a news.Source reading a fixed list of RSS/Atom feeds.
type Source struct {
	urls   []string
	parser *gofeed.Parser
}

var _ news.Source = (*Source)(nil)

func NewSource(urls []string) *Source {
	return &Source{urls: urls, parser: gofeed.NewParser()}
}

func (s *Source) Name() string { return Name }

// Fetch downloads every feed. A broken feed is logged and skipped; the call
// only fails when no feed could be read.
func (s *Source) Fetch(ctx context.Context) ([]news.Candidate, error) {
	if len(s.urls) == 0 {
		return nil, ErrNoFeeds
	}

	var (
		out     []news.Candidate
		lastErr error
		ok      int
	)
	for _, url := range s.urls {
		feed, err := s.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			logger.Warn("error parsing rss feed", "url", url, "error", err)
			lastErr = err
			continue
		}
		ok++
		logger.Debug("loaded rss feed", "url", url, "items", len(feed.Items))
		for _, item := range feed.Items {
			out = append(out, toCandidate(feed, item))
		}
	}

	logger.Info("processed rss feeds", "ok", ok, "total", len(s.urls))
	if ok == 0 {
		return nil, fmt.Errorf("all %d rss feeds failed: %w", len(s.urls), lastErr)
	}
	return out, nil
}

func toCandidate(feed *gofeed.Feed, item *gofeed.Item) news.Candidate {
	var published time.Time
	switch {
	case item.PublishedParsed != nil:
		published = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		published = *item.UpdatedParsed
	}

	return news.Candidate{
		Title:       item.Title,
		Description: item.Description,
		URL:         item.Link,
		PublishedAt: published,
		SourceName:  strings.TrimSpace(feed.Title),
	}
}
