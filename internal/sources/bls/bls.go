// Package bls reads total nonfarm payrolls from the BLS public API.
package bls

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/macrotracker/internal/macro"
	"github.com/deusflow/macrotracker/internal/ratelimit"
	"github.com/deusflow/macrotracker/internal/sources"
)

const (
	Provider       = "bls"
	DefaultBaseURL = "https://api.bls.gov"

	// SeriesNonfarm is total nonfarm employment, in thousands.
	SeriesNonfarm = "CES0000000001"

	// Daily request quotas of the v2 API with and without a registration key.
	DailyLimit        = 500
	KeylessDailyLimit = 25

	statusSucceeded = "REQUEST_SUCCEEDED"
)

type Config struct {
	// APIKey is optional; BLS serves keyless requests with a lower quota.
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

type seriesRequest struct {
	SeriesID        []string `json:"seriesid"`
	StartYear       string   `json:"startyear"`
	EndYear         string   `json:"endyear"`
	RegistrationKey string   `json:"registrationkey,omitempty"`
}

type seriesResponse struct {
	Status  string   `json:"status"`
	Message []string `json:"message"`
	Results struct {
		Series []struct {
			Data []struct {
				Year       string `json:"year"`
				Period     string `json:"period"`
				PeriodName string `json:"periodName"`
				Value      string `json:"value"`
			} `json:"data"`
		} `json:"series"`
	} `json:"Results"`
}

// Fetch reads the latest payrolls observation of the current year. The
// reported level is in thousands and is scaled to persons.
func (c *Client) Fetch(ctx context.Context) (macro.JobsReading, error) {
	now := c.now()
	year := strconv.Itoa(now.Year())

	body, err := json.Marshal(seriesRequest{
		SeriesID:        []string{SeriesNonfarm},
		StartYear:       year,
		EndYear:         year,
		RegistrationKey: c.apiKey,
	})
	if err != nil {
		return macro.JobsReading{}, fmt.Errorf("bls encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/publicAPI/v2/timeseries/data", bytes.NewReader(body))
	if err != nil {
		return macro.JobsReading{}, fmt.Errorf("bls build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp seriesResponse
	if err := c.DoJSON(ctx, req, &resp, nil); err != nil {
		return macro.JobsReading{}, err
	}
	if resp.Status != statusSucceeded {
		return macro.JobsReading{}, fmt.Errorf("bls: status %s: %s", resp.Status, strings.Join(resp.Message, "; "))
	}

	reading := macro.JobsReading{LastUpdated: now}
	if len(resp.Results.Series) == 0 || len(resp.Results.Series[0].Data) == 0 {
		return reading, nil
	}

	latest := resp.Results.Series[0].Data[0]
	reading.Period = latest.PeriodName
	reading.Year = latest.Year
	if v, err := strconv.ParseFloat(strings.TrimSpace(latest.Value), 64); err == nil {
		reading.NonfarmPayrolls = macro.Some(v * 1000)
	}
	return reading, nil
}
