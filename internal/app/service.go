package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deusflow/macrotracker/internal/bias"
	"github.com/deusflow/macrotracker/internal/cache"
	"github.com/deusflow/macrotracker/internal/gemini"
	"github.com/deusflow/macrotracker/internal/logger"
	"github.com/deusflow/macrotracker/internal/macro"
	"github.com/deusflow/macrotracker/internal/news"
	"github.com/deusflow/macrotracker/internal/schedule"
	"github.com/deusflow/macrotracker/internal/scraper"
)

// Publisher streams updates out of the process.
type Publisher interface {
	PublishSnapshot(ctx context.Context, s macro.Snapshot, b bias.Result) error
	PublishFeed(ctx context.Context, f news.Feed) error
}

// Alerter is told about every new bias.
type Alerter interface {
	Observe(ctx context.Context, r bias.Result, s macro.Snapshot) (bool, error)
}

// Digester summarizes article text.
type Digester interface {
	Summarize(ctx context.Context, title, content string) (gemini.Digest, error)
}

// Extractor pulls readable text out of an article page.
type Extractor interface {
	Extract(ctx context.Context, url string) (scraper.Article, error)
}

// Deps are the collaborators of a Service. Publisher, Alerter and Digester
// are optional. Digests keeps digests per article URL for DigestTTL.
type Deps struct {
	Macro     *macro.Aggregator
	News      *news.Pipeline
	Articles  Extractor
	Publisher Publisher
	Alerter   Alerter
	Digester  Digester
	Digests   *cache.Cache[gemini.Digest]
	DigestTTL time.Duration
}

// Service runs refreshes and keeps the Dashboard current.
type Service struct {
	deps Deps
	dash *Dashboard
}

func NewService(d Deps) *Service {
	return &Service{deps: d, dash: NewDashboard()}
}

func (s *Service) Dashboard() *Dashboard { return s.dash }

// Snapshot queries every macro source. On success the bias is recomputed,
// alerts are checked and the update is published; on failure the dashboard
// records the failure in place of the snapshot.
func (s *Service) Snapshot(ctx context.Context) (macro.Snapshot, bias.Result, error) {
	snap, err := s.deps.Macro.All(ctx)
	if err != nil {
		s.fail(err)
		return macro.Snapshot{}, bias.Result{}, err
	}
	return snap, s.apply(ctx, snap), nil
}

// Combine merges the latest per-source readings into a snapshot without
// querying the providers again. It reports false when a reading is missing.
func (s *Service) Combine(ctx context.Context) (macro.Snapshot, bias.Result, bool) {
	v := s.dash.View()
	if v.Fred == nil || v.Market == nil || v.Jobs == nil {
		return macro.Snapshot{}, bias.Result{}, false
	}
	snap := macro.Merge(*v.Fred, *v.Market, *v.Jobs, time.Now())
	return snap, s.apply(ctx, snap), true
}

// apply stores snap with its bias, then alerts and publishes.
func (s *Service) apply(ctx context.Context, snap macro.Snapshot) bias.Result {
	result := bias.Compute(snap)
	s.dash.setOutcome(macro.Succeeded(snap), &result)
	logger.Info("macro snapshot refreshed", "bias", result.Label, "score", result.Score)

	if s.deps.Alerter != nil {
		if _, err := s.deps.Alerter.Observe(ctx, result, snap); err != nil {
			logger.Error("bias alert failed", "error", err)
		}
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.PublishSnapshot(ctx, snap, result); err != nil {
			logger.Error("publish snapshot failed", "error", err)
		}
	}
	return result
}

func (s *Service) Fred(ctx context.Context) (macro.FredReading, error) {
	r, err := s.deps.Macro.Fred(ctx)
	if err == nil {
		s.dash.setFred(r)
	}
	return r, err
}

func (s *Service) Market(ctx context.Context) (macro.MarketReading, error) {
	r, err := s.deps.Macro.Market(ctx)
	if err == nil {
		s.dash.setMarket(r)
	}
	return r, err
}

func (s *Service) Jobs(ctx context.Context) (macro.JobsReading, error) {
	r, err := s.deps.Macro.Jobs(ctx)
	if err == nil {
		s.dash.setJobs(r)
	}
	return r, err
}

func (s *Service) Releases(ctx context.Context) (macro.ReleaseReading, error) {
	r, err := s.deps.Macro.Releases(ctx)
	if err == nil {
		s.dash.setFred(r.FredReading)
		s.dash.setJobs(r.Jobs)
	}
	return r, err
}

// Bias returns the bias of the latest snapshot, refreshing first when no
// snapshot has been taken yet.
func (s *Service) Bias(ctx context.Context) (bias.Result, error) {
	if v := s.dash.View(); v.Bias != nil && v.Macro.OK() {
		return *v.Bias, nil
	}
	_, result, err := s.Snapshot(ctx)
	return result, err
}

// News runs the news pipeline and stores its feed.
func (s *Service) News(ctx context.Context) (news.Feed, error) {
	feed, err := s.deps.News.Run(ctx)
	if err != nil {
		return news.Feed{}, err
	}
	s.dash.setFeed(feed)

	if s.deps.Publisher != nil && feed.FetchError == "" {
		if err := s.deps.Publisher.PublishFeed(ctx, feed); err != nil {
			logger.Error("publish news failed", "error", err)
		}
	}
	return feed, nil
}

// Article extracts the page at url and, when a Digester is configured,
// attaches a digest. Digests are cached per URL. A failed digest is logged,
// not returned.
func (s *Service) Article(ctx context.Context, url string) (scraper.Article, error) {
	a, err := s.deps.Articles.Extract(ctx, url)
	if err != nil {
		return scraper.Article{}, err
	}
	if s.deps.Digester == nil || !a.Extracted {
		return a, nil
	}

	key := cache.Key("digest", a.URL)
	d, ok := s.cachedDigest(key)
	if !ok {
		d, err = s.deps.Digester.Summarize(ctx, a.Title, a.Content)
		if err != nil {
			logger.Warn("article digest failed", "url", url, "error", err)
			return a, nil
		}
		if s.deps.Digests != nil {
			ttl := s.deps.DigestTTL
			if ttl <= 0 {
				ttl = scraper.DefaultCacheTTL
			}
			s.deps.Digests.Set(key, d, ttl)
		}
	}

	a.Digest = d.Summary
	if d.Impact != "" {
		a.Digest += " " + d.Impact
	}
	return a, nil
}

func (s *Service) cachedDigest(key string) (gemini.Digest, bool) {
	if s.deps.Digests == nil {
		return gemini.Digest{}, false
	}
	return s.deps.Digests.Get(key)
}

// ScheduleConfig drives Schedule.
type ScheduleConfig struct {
	MarketEvery  time.Duration
	NewsEvery    time.Duration
	ReleaseTimes []schedule.Clock
	Location     *time.Location
}

// Schedule registers the refresh jobs on sched. Market and release
// refreshes are followed by a combined snapshot built from the stored
// readings, so a market tick never re-queries FRED or BLS.
func (s *Service) Schedule(sched *schedule.Scheduler, cfg ScheduleConfig) {
	sched.Every("market", cfg.MarketEvery, func(ctx context.Context) {
		if _, err := s.Market(ctx); err != nil {
			s.fail(err)
			return
		}
		s.combineQuietly(ctx)
	})
	sched.Every("news", cfg.NewsEvery, func(ctx context.Context) {
		if _, err := s.News(ctx); err != nil {
			logger.Error("scheduled news refresh failed", "error", err)
		}
	})
	sched.DailyAt("releases", cfg.ReleaseTimes, cfg.Location, func(ctx context.Context) {
		if _, err := s.Releases(ctx); err != nil {
			s.fail(err)
			return
		}
		s.combineQuietly(ctx)
	})
}

// Warmup fetches every source once and builds the first snapshot and feed,
// so the dashboard is populated before the first timer fires.
func (s *Service) Warmup(ctx context.Context) error {
	var errs []error
	if _, err := s.Releases(ctx); err != nil {
		errs = append(errs, fmt.Errorf("releases: %w", err))
	}
	if _, err := s.Market(ctx); err != nil {
		errs = append(errs, fmt.Errorf("market: %w", err))
	}
	if len(errs) == 0 {
		s.Combine(ctx)
	} else {
		s.fail(errors.Join(errs...))
	}
	if _, err := s.News(ctx); err != nil {
		errs = append(errs, fmt.Errorf("news: %w", err))
	}
	return errors.Join(errs...)
}

// combineQuietly rebuilds the snapshot from stored readings. Until every
// source has been read once it falls back to a full query.
func (s *Service) combineQuietly(ctx context.Context) {
	if _, _, ok := s.Combine(ctx); ok {
		return
	}
	if _, _, err := s.Snapshot(ctx); err != nil && ctx.Err() == nil {
		logger.Warn("scheduled snapshot failed", "error", err)
	}
}

// fail records a failed refresh in place of the snapshot.
func (s *Service) fail(err error) {
	s.dash.setOutcome(macro.Failed(err, time.Now()), nil)
}

// View returns a copy of the current dashboard state.
func (s *Service) View() View { return s.dash.View() }
