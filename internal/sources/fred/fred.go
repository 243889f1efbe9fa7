// Package fred reads the latest observations of the FRED series the
// dashboard tracks.
package fred

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/macrotracker/internal/macro"
	"github.com/deusflow/macrotracker/internal/ratelimit"
	"github.com/deusflow/macrotracker/internal/sources"
)

const (
	Provider       = "fred"
	DefaultBaseURL = "https://api.stlouisfed.org"

	SeriesCPI      = "CPIAUCSL"
	SeriesTenYear  = "GS10"
	SeriesFedFunds = "FEDFUNDS"
)

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Limiter *ratelimit.Limiter
}

type Client struct {
	sources.Client
	apiKey string
	now    func() time.Time
}

func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		Client: sources.Client{
			Provider: Provider,
			BaseURL:  strings.TrimRight(base, "/"),
			HTTP:     sources.NewHTTPClient(cfg.Timeout),
			Limiter:  cfg.Limiter,
		},
		apiKey: cfg.APIKey,
		now:    time.Now,
	}
}

type observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type observationsResponse struct {
	Observations []observation `json:"observations"`
}

// Fetch reads CPI, the 10-year yield and the Fed funds rate. Any failed
// series fails the reading; a series without a usable value is absent.
func (c *Client) Fetch(ctx context.Context) (macro.FredReading, error) {
	if c.apiKey == "" {
		return macro.FredReading{}, fmt.Errorf("%s: %w", Provider, sources.ErrNoAPIKey)
	}

	var cpi, tenYear, fedFunds observation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { cpi, err = c.latest(gctx, SeriesCPI); return err })
	g.Go(func() (err error) { tenYear, err = c.latest(gctx, SeriesTenYear); return err })
	g.Go(func() (err error) { fedFunds, err = c.latest(gctx, SeriesFedFunds); return err })
	if err := g.Wait(); err != nil {
		return macro.FredReading{}, err
	}

	return macro.FredReading{
		CPI:          parseValue(cpi.Value),
		TenYearYield: parseValue(tenYear.Value),
		FedRate:      parseValue(fedFunds.Value),
		ObservedOn:   cpi.Date,
		LastUpdated:  c.now(),
	}, nil
}

// latest returns the newest observation of a series, or a zero
// observation when the series has none.
func (c *Client) latest(ctx context.Context, series string) (observation, error) {
	q := url.Values{}
	q.Set("series_id", series)
	q.Set("api_key", c.apiKey)
	q.Set("file_type", "json")
	q.Set("limit", "1")
	q.Set("sort_order", "desc")

	var resp observationsResponse
	if err := c.GetJSON(ctx, c.BaseURL+"/fred/series/observations?"+q.Encode(), &resp); err != nil {
		return observation{}, fmt.Errorf("series %s: %w", series, err)
	}
	if len(resp.Observations) == 0 {
		return observation{}, nil
	}
	return resp.Observations[0], nil
}

// parseValue maps FRED's "." placeholder and unparsable values to absent.
func parseValue(s string) macro.Value {
	s = strings.TrimSpace(s)
	if s == "" || s == "." {
		return macro.None()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return macro.None()
	}
	return macro.Some(v)
}
