package app

import (
	"context"
	"fmt"
	"time"

	"github.com/deusflow/macrotracker/internal/alert"
	"github.com/deusflow/macrotracker/internal/cache"
	"github.com/deusflow/macrotracker/internal/config"
	"github.com/deusflow/macrotracker/internal/gemini"
	"github.com/deusflow/macrotracker/internal/logger"
	"github.com/deusflow/macrotracker/internal/macro"
	"github.com/deusflow/macrotracker/internal/news"
	"github.com/deusflow/macrotracker/internal/publish"
	"github.com/deusflow/macrotracker/internal/ratelimit"
	"github.com/deusflow/macrotracker/internal/rss"
	"github.com/deusflow/macrotracker/internal/schedule"
	"github.com/deusflow/macrotracker/internal/scraper"
	"github.com/deusflow/macrotracker/internal/sources/bls"
	"github.com/deusflow/macrotracker/internal/sources/fred"
	"github.com/deusflow/macrotracker/internal/sources/newsapi"
	"github.com/deusflow/macrotracker/internal/sources/yahoo"
	"github.com/deusflow/macrotracker/internal/telegram"
)

// providerLimits returns the request budgets of every provider. FRED allows
// 120 requests a minute, NewsAPI's developer plan 100 a day and BLS 500 a day
// with a key or 25 without one.
func providerLimits(cfg *config.Config) map[string]ratelimit.Limit {
	blsDaily := bls.DailyLimit
	if cfg.BLSAPIKey == "" {
		blsDaily = bls.KeylessDailyLimit
	}
	return map[string]ratelimit.Limit{
		fred.Provider:    {PerMinute: 120, Burst: 3},
		yahoo.Provider:   {PerMinute: 60, Burst: 2},
		bls.Provider:     {PerMinute: 10, Burst: 1, Daily: blsDaily},
		newsapi.Provider: {PerMinute: 10, Burst: 1, Daily: 100},
		gemini.Provider:  {PerMinute: 15, Burst: 1, Daily: 1500},
	}
}

// App is the fully wired application.
type App struct {
	Config  *config.Config
	Service *Service
	Limiter *ratelimit.Limiter

	closers []func()
}

// New wires every component described by cfg. Optional integrations
// (Telegram alerts, Gemini digests, Kafka) are only built when configured.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Limiter: ratelimit.New()}
	for name, lim := range providerLimits(cfg) {
		a.Limiter.Register(name, lim)
	}

	aggregator := macro.NewAggregator(
		fred.New(fred.Config{APIKey: cfg.FredAPIKey, Timeout: cfg.RequestTimeout, Limiter: a.Limiter}),
		yahoo.New(yahoo.Config{Timeout: cfg.RequestTimeout, Limiter: a.Limiter}),
		bls.New(bls.Config{APIKey: cfg.BLSAPIKey, Timeout: cfg.RequestTimeout, Limiter: a.Limiter}),
		cfg.RequestTimeout,
	)

	source, err := a.newsSource(cfg)
	if err != nil {
		return nil, err
	}
	pipeline := news.NewPipeline(source, news.Config{Limit: cfg.NewsLimit, Timeout: cfg.NewsTimeout})

	articleCache := cache.New[scraper.Article](time.Hour)
	a.closers = append(a.closers, articleCache.Close)
	extractor := scraper.New(scraper.Config{
		Timeout:  cfg.ArticleTimeout,
		CacheTTL: cfg.ArticleCacheTTL,
		Cache:    articleCache,
	})

	deps := Deps{Macro: aggregator, News: pipeline, Articles: extractor}

	if cfg.AlertsEnabled && cfg.TelegramEnabled() {
		deps.Alerter = alert.NewWatcher(telegram.NewClient(cfg.TelegramToken, cfg.TelegramChatID), cfg.BiasThreshold)
		logger.Info("bias alerts enabled", "threshold", cfg.BiasThreshold)
	}

	if cfg.GeminiAPIKey != "" {
		g, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, "", a.Limiter)
		if err != nil {
			a.Close()
			return nil, err
		}
		digests := cache.New[gemini.Digest](time.Hour)
		a.closers = append(a.closers, g.Close, digests.Close)
		deps.Digester = g
		deps.Digests = digests
		deps.DigestTTL = cfg.ArticleCacheTTL
	}

	if len(cfg.KafkaBrokers) > 0 {
		p := publish.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, func() {
			if err := p.Close(); err != nil {
				logger.Warn("closing kafka publisher", "error", err)
			}
		})
		deps.Publisher = p
	}

	a.Service = NewService(deps)
	return a, nil
}

func (a *App) newsSource(cfg *config.Config) (news.Source, error) {
	switch cfg.NewsProvider {
	case config.ProviderRSS:
		feeds, err := rss.LoadFeeds(cfg.FeedsConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load feeds: %w", err)
		}
		return rss.NewSource(feeds), nil
	default:
		return newsapi.New(newsapi.Config{
			APIKey:   cfg.NewsAPIKey,
			PageSize: cfg.NewsPageSize,
			Timeout:  cfg.NewsTimeout,
			Limiter:  a.Limiter,
		}), nil
	}
}

// Scheduler returns a scheduler with the refresh jobs registered, or nil
// when auto refresh is off.
func (a *App) Scheduler() (*schedule.Scheduler, error) {
	if !a.Config.AutoRefresh {
		return nil, nil
	}

	times := make([]schedule.Clock, 0, len(a.Config.ReleaseTimes))
	for _, rt := range a.Config.ReleaseTimes {
		h, m, err := config.ParseClock(rt)
		if err != nil {
			return nil, err
		}
		times = append(times, schedule.Clock{Hour: h, Minute: m})
	}

	sched := schedule.New()
	a.Service.Schedule(sched, ScheduleConfig{
		MarketEvery:  a.Config.MarketRefresh,
		NewsEvery:    a.Config.NewsRefresh,
		ReleaseTimes: times,
		Location:     a.Config.Location(),
	})
	return sched, nil
}

// Close releases background resources in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
