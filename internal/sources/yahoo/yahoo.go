// Package yahoo reads gold and dollar index prices from the Yahoo Finance
// chart endpoint.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/macrotracker/internal/logger"
	"github.com/deusflow/macrotracker/internal/macro"
	"github.com/deusflow/macrotracker/internal/ratelimit"
	"github.com/deusflow/macrotracker/internal/sources"
)

const (
	Provider       = "yahoo"
	DefaultBaseURL = "https://query1.finance.yahoo.com"

	SymbolGold   = "GC=F"
	SymbolDollar = "DX-Y.NYB"
)

var errNoPrice = errors.New("no price in chart")

type Config struct {
	BaseURL string
	Timeout time.Duration
	Limiter *ratelimit.Limiter
}

type Client struct {
	sources.Client
	now func() time.Time
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
		now: time.Now,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch reads both symbols. A symbol that fails is left absent; the call
// only fails when neither symbol could be read.
func (c *Client) Fetch(ctx context.Context) (macro.MarketReading, error) {
	gold, goldErr := c.Price(ctx, SymbolGold)
	if goldErr != nil {
		logger.Warn("yahoo symbol failed", "symbol", SymbolGold, "error", goldErr)
	}
	dollar, dollarErr := c.Price(ctx, SymbolDollar)
	if dollarErr != nil {
		logger.Warn("yahoo symbol failed", "symbol", SymbolDollar, "error", dollarErr)
	}

	if goldErr != nil && dollarErr != nil {
		return macro.MarketReading{}, errors.Join(goldErr, dollarErr)
	}

	return macro.MarketReading{
		GoldPrice:   gold,
		DollarIndex: dollar,
		LastUpdated: c.now(),
	}, nil
}

// Price returns the regular market price of symbol, falling back to the
// last non-null close of the day.
func (c *Client) Price(ctx context.Context, symbol string) (macro.Value, error) {
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("range", "1d")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.BaseURL, url.PathEscape(symbol), q.Encode())

	var resp chartResponse
	if err := c.GetJSON(ctx, endpoint, &resp); err != nil {
		return macro.None(), fmt.Errorf("%s: %w", symbol, err)
	}
	if e := resp.Chart.Error; e != nil {
		return macro.None(), fmt.Errorf("%s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return macro.None(), fmt.Errorf("%s: %w", symbol, errNoPrice)
	}

	result := resp.Chart.Result[0]
	if p := result.Meta.RegularMarketPrice; p != nil && *p != 0 {
		return macro.Some(*p), nil
	}
	if len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] != nil {
				return macro.Some(*closes[i]), nil
			}
		}
	}
	return macro.None(), fmt.Errorf("%s: %w", symbol, errNoPrice)
}
