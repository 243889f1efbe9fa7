package macro

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/macrotracker/internal/logger"
	"github.com/deusflow/macrotracker/internal/metrics"
)

const (
	SourceFred   = "fred"
	SourceMarket = "yahoo"
	SourceJobs   = "bls"
)

// FredSource returns CPI, 10-year yield and Fed funds rate.
type FredSource interface {
	Fetch(ctx context.Context) (FredReading, error)
}

// MarketSource returns gold and dollar index prices.
type MarketSource interface {
	Fetch(ctx context.Context) (MarketReading, error)
}

// JobsSource returns nonfarm payrolls.
type JobsSource interface {
	Fetch(ctx context.Context) (JobsReading, error)
}

// SourceError marks a failed provider call.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s failed: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// FailedSource returns the name of the failed source if err is a
// SourceError.
func FailedSource(err error) (string, bool) {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Source, true
	}
	return "", false
}

// Aggregator queries the three macro sources, either one at a time or
// combined into a Snapshot.
type Aggregator struct {
	fred    FredSource
	market  MarketSource
	jobs    JobsSource
	timeout time.Duration
	now     func() time.Time
}

// NewAggregator creates an Aggregator. timeout bounds every provider call;
// zero disables the bound.
func NewAggregator(fred FredSource, market MarketSource, jobs JobsSource, timeout time.Duration) *Aggregator {
	return &Aggregator{
		fred:    fred,
		market:  market,
		jobs:    jobs,
		timeout: timeout,
		now:     time.Now,
	}
}

func (a *Aggregator) Fred(ctx context.Context) (FredReading, error) {
	return call(ctx, a, SourceFred, a.fred.Fetch)
}

func (a *Aggregator) Market(ctx context.Context) (MarketReading, error) {
	return call(ctx, a, SourceMarket, a.market.Fetch)
}

func (a *Aggregator) Jobs(ctx context.Context) (JobsReading, error) {
	return call(ctx, a, SourceJobs, a.jobs.Fetch)
}

// Releases queries FRED and BLS together. Either failure fails the whole
// reading.
func (a *Aggregator) Releases(ctx context.Context) (ReleaseReading, error) {
	var (
		fred FredReading
		jobs JobsReading
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fred, err = a.Fred(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		jobs, err = a.Jobs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ReleaseReading{}, err
	}

	return ReleaseReading{FredReading: fred, Jobs: jobs}, nil
}

// All queries every source concurrently and merges the readings. The first
// failure is returned and no partial snapshot is produced.
func (a *Aggregator) All(ctx context.Context) (Snapshot, error) {
	var (
		fred   FredReading
		market MarketReading
		jobs   JobsReading
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fred, err = a.Fred(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		market, err = a.Market(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		jobs, err = a.Jobs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	metrics.Global.IncrementMacroRefreshes()
	metrics.Global.SetLastRun()
	return Merge(fred, market, jobs, a.now()), nil
}

func call[T any](ctx context.Context, a *Aggregator, source string, fetch func(context.Context) (T, error)) (T, error) {
	parent := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	v, err := fetch(ctx)
	if err != nil {
		var zero T
		// A cancelled caller, or a sibling that already failed, is not a
		// failure of this source.
		if parent.Err() != nil {
			logger.Debug("macro source cancelled", "source", source, "error", err)
			return zero, &SourceError{Source: source, Err: err}
		}
		metrics.Global.IncrementSourceFailures(source)
		metrics.Global.SetError(err.Error())
		logger.Warn("macro source failed", "source", source, "error", err)
		return zero, &SourceError{Source: source, Err: err}
	}

	logger.Debug("macro source fetched", "source", source, "took", time.Since(start))
	return v, nil
}
