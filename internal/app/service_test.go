package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deusflow/macrotracker/internal/bias"
	"github.com/deusflow/macrotracker/internal/cache"
	"github.com/deusflow/macrotracker/internal/gemini"
	"github.com/deusflow/macrotracker/internal/macro"
	"github.com/deusflow/macrotracker/internal/news"
	"github.com/deusflow/macrotracker/internal/scraper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fredStub struct {
	r     macro.FredReading
	err   error
	calls atomic.Int32
}

func (f *fredStub) Fetch(ctx context.Context) (macro.FredReading, error) {
	f.calls.Add(1)
	return f.r, f.err
}

type marketStub struct {
	r   macro.MarketReading
	err error
}

func (m *marketStub) Fetch(ctx context.Context) (macro.MarketReading, error) { return m.r, m.err }

type jobsStub struct {
	r   macro.JobsReading
	err error
}

func (j *jobsStub) Fetch(ctx context.Context) (macro.JobsReading, error) { return j.r, j.err }

type newsStub struct {
	candidates []news.Candidate
	err        error
}

func (n *newsStub) Name() string { return "stub" }

func (n *newsStub) Fetch(ctx context.Context) ([]news.Candidate, error) {
	return n.candidates, n.err
}

type recordingPublisher struct {
	mu        sync.Mutex
	snapshots []bias.Result
	feeds     []news.Feed
}

func (p *recordingPublisher) PublishSnapshot(ctx context.Context, s macro.Snapshot, b bias.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, b)
	return nil
}

func (p *recordingPublisher) PublishFeed(ctx context.Context, f news.Feed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feeds = append(p.feeds, f)
	return nil
}

type recordingAlerter struct {
	observed []bias.Label
}

func (a *recordingAlerter) Observe(ctx context.Context, r bias.Result, s macro.Snapshot) (bool, error) {
	a.observed = append(a.observed, r.Label)
	return true, nil
}

type extractorStub struct {
	article scraper.Article
	err     error
}

func (e *extractorStub) Extract(ctx context.Context, url string) (scraper.Article, error) {
	return e.article, e.err
}

type digesterStub struct {
	digest gemini.Digest
	err    error
	calls  int
}

func (d *digesterStub) Summarize(ctx context.Context, title, content string) (gemini.Digest, error) {
	d.calls++
	return d.digest, d.err
}

type fixture struct {
	fred      *fredStub
	market    *marketStub
	jobs      *jobsStub
	news      *newsStub
	publisher *recordingPublisher
	alerter   *recordingAlerter
}

// bullish readings: CPI 3.4 (+2), DXY 99 (+1), yields 2.8 (+1) = 4.
func newFixture() *fixture {
	return &fixture{
		fred: &fredStub{r: macro.FredReading{
			CPI:          macro.Some(3.4),
			TenYearYield: macro.Some(2.8),
			FedRate:      macro.Some(5.33),
			ObservedOn:   "2024-04-01",
		}},
		market: &marketStub{r: macro.MarketReading{GoldPrice: macro.Some(2330), DollarIndex: macro.Some(99)}},
		jobs:   &jobsStub{r: macro.JobsReading{NonfarmPayrolls: macro.Some(158_000_000), Period: "May", Year: "2024"}},
		news: &newsStub{candidates: []news.Candidate{
			{Title: "Gold rallies as dollar slides", URL: "https://a.test/1", SourceName: "A", PublishedAt: time.Now()},
			{Title: "Local team wins derby", URL: "https://a.test/2", SourceName: "A", PublishedAt: time.Now()},
		}},
		publisher: &recordingPublisher{},
		alerter:   &recordingAlerter{},
	}
}

func (f *fixture) service() *Service {
	return NewService(Deps{
		Macro:     macro.NewAggregator(f.fred, f.market, f.jobs, time.Second),
		News:      news.NewPipeline(f.news, news.Config{Limit: 10, Timeout: time.Second}),
		Publisher: f.publisher,
		Alerter:   f.alerter,
	})
}

func TestServiceSnapshot(t *testing.T) {
	f := newFixture()
	s := f.service()

	snap, result, err := s.Snapshot(context.Background())
	require.NoError(t, err)

	v, ok := snap.CPI.Get()
	require.True(t, ok)
	assert.Equal(t, 3.4, v)
	assert.Equal(t, 4, result.Score)
	assert.Equal(t, bias.StrongBullish, result.Label)

	view := s.View()
	require.True(t, view.Macro.OK())
	require.NotNil(t, view.Bias)
	assert.Equal(t, bias.StrongBullish, view.Bias.Label)
	assert.False(t, view.UpdatedAt.IsZero())

	assert.Equal(t, []bias.Label{bias.StrongBullish}, f.alerter.observed)
	assert.Len(t, f.publisher.snapshots, 1)
}

func TestServiceSnapshot_FailureReplacesState(t *testing.T) {
	f := newFixture()
	s := f.service()

	_, _, err := s.Snapshot(context.Background())
	require.NoError(t, err)

	f.jobs.err = errors.New("bls down")
	_, _, err = s.Snapshot(context.Background())
	require.Error(t, err)

	view := s.View()
	assert.False(t, view.Macro.OK())
	assert.Equal(t, macro.SourceJobs, view.Macro.Source)
	assert.Contains(t, view.Macro.Error, "bls down")
	assert.Nil(t, view.Bias)

	assert.Len(t, f.publisher.snapshots, 1)
	assert.Len(t, f.alerter.observed, 1)
}

func TestServiceBias_UsesLatestSnapshot(t *testing.T) {
	f := newFixture()
	s := f.service()

	first, err := s.Bias(context.Background())
	require.NoError(t, err)
	second, err := s.Bias(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.fred.calls.Load())
}

func TestServiceBias_RefreshesAfterFailure(t *testing.T) {
	f := newFixture()
	s := f.service()
	f.market.err = errors.New("yahoo down")

	_, err := s.Bias(context.Background())
	require.Error(t, err)

	f.market.err = nil
	result, err := s.Bias(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bias.StrongBullish, result.Label)
}

func TestServicePerSourceQueries(t *testing.T) {
	f := newFixture()
	s := f.service()
	ctx := context.Background()

	_, err := s.Market(ctx)
	require.NoError(t, err)
	r, err := s.Releases(ctx)
	require.NoError(t, err)
	assert.Equal(t, "May", r.Jobs.Period)

	view := s.View()
	require.NotNil(t, view.Market)
	require.NotNil(t, view.Fred)
	require.NotNil(t, view.Jobs)
	assert.Equal(t, "2024-04-01", view.Fred.ObservedOn)
	assert.False(t, view.Macro.OK(), "per-source queries do not produce a snapshot")

	f.fred.err = errors.New("fred down")
	_, err = s.Fred(ctx)
	require.Error(t, err)
	assert.Equal(t, "2024-04-01", s.View().Fred.ObservedOn, "failed query keeps the last reading")
}

func TestServiceNews(t *testing.T) {
	f := newFixture()
	s := f.service()

	feed, err := s.News(context.Background())
	require.NoError(t, err)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, 2, feed.Counters.Total)
	assert.Equal(t, feed.RunID, s.View().News.RunID)
	assert.Len(t, f.publisher.feeds, 1)
}

func TestServiceNews_FetchFailureIsNotPublished(t *testing.T) {
	f := newFixture()
	f.news.err = errors.New("connection refused")
	s := f.service()

	feed, err := s.News(context.Background())
	require.NoError(t, err)
	assert.Empty(t, feed.Items)
	assert.Contains(t, feed.FetchError, "connection refused")
	assert.Equal(t, feed.FetchError, s.View().News.FetchError)
	assert.Empty(t, f.publisher.feeds)
}

func TestServiceNews_UpstreamErrorKeepsPreviousFeed(t *testing.T) {
	f := newFixture()
	s := f.service()

	first, err := s.News(context.Background())
	require.NoError(t, err)

	f.news.err = &news.UpstreamError{Provider: "stub", Code: "apiKeyInvalid", Message: "bad key"}
	_, err = s.News(context.Background())
	var upstream *news.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, first.RunID, s.View().News.RunID)
}

func TestServiceArticle(t *testing.T) {
	article := scraper.Article{URL: "https://a.test/1", Title: "Fed holds", Content: "The Fed held rates.", Extracted: true}

	t.Run("digest attached", func(t *testing.T) {
		d := &digesterStub{digest: gemini.Digest{Summary: "Rates unchanged.", Impact: "Gold steady."}}
		s := NewService(Deps{Articles: &extractorStub{article: article}, Digester: d})

		got, err := s.Article(context.Background(), article.URL)
		require.NoError(t, err)
		assert.Equal(t, "Rates unchanged. Gold steady.", got.Digest)
	})

	t.Run("digest failure is ignored", func(t *testing.T) {
		d := &digesterStub{err: errors.New("quota")}
		s := NewService(Deps{Articles: &extractorStub{article: article}, Digester: d})

		got, err := s.Article(context.Background(), article.URL)
		require.NoError(t, err)
		assert.Empty(t, got.Digest)
		assert.Equal(t, article.Content, got.Content)
	})

	t.Run("fallback content is not summarized", func(t *testing.T) {
		fallback := scraper.Article{URL: article.URL, Content: scraper.FallbackContent}
		d := &digesterStub{}
		s := NewService(Deps{Articles: &extractorStub{article: fallback}, Digester: d})

		_, err := s.Article(context.Background(), article.URL)
		require.NoError(t, err)
		assert.Zero(t, d.calls)
	})

	t.Run("digest cached per url", func(t *testing.T) {
		d := &digesterStub{digest: gemini.Digest{Summary: "Rates unchanged."}}
		digests := cache.New[gemini.Digest](time.Minute)
		defer digests.Close()
		s := NewService(Deps{Articles: &extractorStub{article: article}, Digester: d, Digests: digests, DigestTTL: time.Minute})

		for i := 0; i < 3; i++ {
			got, err := s.Article(context.Background(), article.URL)
			require.NoError(t, err)
			assert.Equal(t, "Rates unchanged.", got.Digest)
		}
		assert.Equal(t, 1, d.calls)
	})

	t.Run("failed digest is not cached", func(t *testing.T) {
		d := &digesterStub{err: errors.New("quota")}
		digests := cache.New[gemini.Digest](time.Minute)
		defer digests.Close()
		s := NewService(Deps{Articles: &extractorStub{article: article}, Digester: d, Digests: digests})

		_, err := s.Article(context.Background(), article.URL)
		require.NoError(t, err)
		d.err = nil
		d.digest = gemini.Digest{Summary: "Recovered."}
		got, err := s.Article(context.Background(), article.URL)
		require.NoError(t, err)
		assert.Equal(t, "Recovered.", got.Digest)
		assert.Equal(t, 2, d.calls)
	})

	t.Run("extract error", func(t *testing.T) {
		s := NewService(Deps{Articles: &extractorStub{err: scraper.ErrMissingURL}})

		_, err := s.Article(context.Background(), "")
		assert.ErrorIs(t, err, scraper.ErrMissingURL)
	})
}

func TestServiceWarmup_JoinsErrors(t *testing.T) {
	f := newFixture()
	f.fred.err = errors.New("fred down")
	f.news.err = &news.UpstreamError{Provider: "stub", Code: "rateLimited", Message: "slow down"}
	s := f.service()

	err := s.Warmup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "releases")
	assert.Contains(t, err.Error(), "news")

	view := s.View()
	assert.False(t, view.Macro.OK())
	assert.Equal(t, macro.SourceFred, view.Macro.Source)
}

func TestServiceWarmup_BuildsSnapshot(t *testing.T) {
	f := newFixture()
	s := f.service()

	require.NoError(t, s.Warmup(context.Background()))

	view := s.View()
	require.True(t, view.Macro.OK())
	require.NotNil(t, view.Bias)
	assert.Equal(t, bias.StrongBullish, view.Bias.Label)
	assert.NotEmpty(t, view.News.RunID)
	assert.Equal(t, int32(1), f.fred.calls.Load())
}

func TestServiceCombine_ReusesReleaseReadings(t *testing.T) {
	f := newFixture()
	s := f.service()
	ctx := context.Background()

	_, _, ok := s.Combine(ctx)
	assert.False(t, ok, "nothing to combine before the first reads")

	_, err := s.Releases(ctx)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		f.market.r.GoldPrice = macro.Some(2330 + float64(i))
		_, err := s.Market(ctx)
		require.NoError(t, err)
		s.combineQuietly(ctx)
	}

	assert.Equal(t, int32(1), f.fred.calls.Load(), "market ticks do not query FRED again")
	view := s.View()
	require.True(t, view.Macro.OK())
	gold, ok := view.Macro.Snapshot.GoldPrice.Get()
	require.True(t, ok)
	assert.Equal(t, 2334.0, gold)
	assert.Len(t, f.publisher.snapshots, 5)
}

func TestServiceCombineQuietly_FallsBackToFullQuery(t *testing.T) {
	f := newFixture()
	s := f.service()

	s.combineQuietly(context.Background())

	assert.Equal(t, int32(1), f.fred.calls.Load())
	assert.True(t, s.View().Macro.OK())
}
