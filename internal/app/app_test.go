package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/deusflow/macrotracker/internal/bias"
	"github.com/deusflow/macrotracker/internal/config"
	"github.com/deusflow/macrotracker/internal/macro"
	"github.com/deusflow/macrotracker/internal/news"
	"github.com/deusflow/macrotracker/internal/sources/bls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	feeds := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(feeds, []byte("feeds:\n  - https://feeds.test/markets.xml\n"), 0o644))

	return &config.Config{
		NewsProvider:    config.ProviderRSS,
		FeedsConfigPath: feeds,
		NewsTimeout:     time.Second,
		NewsPageSize:    50,
		NewsLimit:       20,
		ArticleTimeout:  time.Second,
		ArticleCacheTTL: time.Hour,
		AutoRefresh:     true,
		MarketRefresh:   time.Minute,
		NewsRefresh:     time.Minute,
		ReleaseTimes:    []string{"08:31"},
		ReleaseTimezone: "America/New_York",
		BiasThreshold:   3,
		RequestTimeout:  time.Second,
	}
}

func TestNew_WiresOptionalIntegrationsOff(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Service)
	assert.Nil(t, a.Service.deps.Alerter)
	assert.Nil(t, a.Service.deps.Digester)
	assert.Nil(t, a.Service.deps.Digests)
	assert.Nil(t, a.Service.deps.Publisher)
	assert.Len(t, a.Limiter.Stats(), len(providerLimits(cfg)))
}

func TestNew_BLSQuotaDependsOnKey(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, bls.KeylessDailyLimit, a.Limiter.Stats()[bls.Provider].Limit)
	a.Close()

	cfg.BLSAPIKey = "registered"
	a, err = New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, bls.DailyLimit, a.Limiter.Stats()[bls.Provider].Limit)
	a.Close()
}

func TestNew_AlertsNeedTelegram(t *testing.T) {
	cfg := testConfig(t)
	cfg.AlertsEnabled = true

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, a.Service.deps.Alerter)
	a.Close()

	cfg.TelegramToken = "token"
	cfg.TelegramChatID = "42"
	a, err = New(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, a.Service.deps.Alerter)
	a.Close()
}

func TestNew_MissingFeedsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.FeedsConfigPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "load feeds")
}

func TestScheduler(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	sched, err := a.Scheduler()
	require.NoError(t, err)
	assert.NotNil(t, sched)

	a.Config.AutoRefresh = false
	sched, err = a.Scheduler()
	require.NoError(t, err)
	assert.Nil(t, sched)

	a.Config.AutoRefresh = true
	a.Config.ReleaseTimes = []string{"8h31"}
	_, err = a.Scheduler()
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	a.Close()
	assert.NotPanics(t, a.Close)
}

func TestDashboard_ViewIsACopy(t *testing.T) {
	d := NewDashboard()
	d.setFeed(news.Feed{RunID: "one"})

	v := d.View()
	v.News.RunID = "changed"
	assert.Equal(t, "one", d.View().News.RunID)
}

func TestDashboard_FailedOutcomeClearsBias(t *testing.T) {
	d := NewDashboard()
	snap := macro.Snapshot{CPI: macro.Some(3.5)}
	result := bias.Compute(snap)

	d.setOutcome(macro.Succeeded(snap), &result)
	require.NotNil(t, d.View().Bias)

	d.setOutcome(macro.Failed(&macro.SourceError{Source: macro.SourceFred, Err: context.DeadlineExceeded}, time.Now()), nil)
	v := d.View()
	assert.Nil(t, v.Bias)
	assert.Equal(t, macro.SourceFred, v.Macro.Source)
}

func TestDashboard_ConcurrentUpdates(t *testing.T) {
	d := NewDashboard()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.setMarket(macro.MarketReading{GoldPrice: macro.Some(2300)})
		}()
		go func() {
			defer wg.Done()
			_ = d.View()
		}()
	}
	wg.Wait()
	require.NotNil(t, d.View().Market)
}
