// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // release times are zoned; hosts may lack a zone database

	"gopkg.in/yaml.v3"
)

const (
	ProviderNewsAPI = "newsapi"
	ProviderRSS     = "rss"
)

type Config struct {
	// Provider keys
	FredAPIKey string
	BLSAPIKey  string
	NewsAPIKey string

	// News settings
	NewsProvider    string // "newsapi" or "rss"
	FeedsConfigPath string
	NewsTimeout     time.Duration
	NewsPageSize    int
	NewsLimit       int

	// Article extraction
	ArticleTimeout  time.Duration
	ArticleCacheTTL time.Duration

	// Refresh schedule
	ScheduleConfigPath string
	AutoRefresh        bool
	MarketRefresh      time.Duration
	NewsRefresh        time.Duration
	ReleaseTimes       []string // "HH:MM" wall clock times
	ReleaseTimezone    string

	// Alerts
	AlertsEnabled  bool
	BiasThreshold  int
	TelegramToken  string
	TelegramChatID string

	// Optional integrations
	GeminiAPIKey string
	KafkaBrokers []string
	KafkaTopic   string

	// HTTP API
	HTTPAddr string
	APIRPS   float64
	APIBurst int

	// App settings
	Debug          bool
	LogFile        string
	RequestTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		NewsProvider:    ProviderNewsAPI,
		FeedsConfigPath: "configs/feeds.yaml",
		NewsTimeout:     10 * time.Second,
		NewsPageSize:    50,
		NewsLimit:       20,
		ArticleTimeout:  10 * time.Second,
		ArticleCacheTTL: 6 * time.Hour,
		AutoRefresh:     true,
		MarketRefresh:   5 * time.Minute,
		NewsRefresh:     10 * time.Minute,
		ReleaseTimes:    []string{"08:31", "10:01"},
		ReleaseTimezone: "America/New_York",
		AlertsEnabled:   true,
		BiasThreshold:   3,
		KafkaTopic:      "macrotracker.updates",
		HTTPAddr:        ":8080",
		APIRPS:          5,
		APIBurst:        10,
		RequestTimeout:  15 * time.Second,
	}

	// Load from environment
	cfg.FredAPIKey = os.Getenv("FRED_API_KEY")
	cfg.BLSAPIKey = os.Getenv("BLS_API_KEY")
	cfg.NewsAPIKey = os.Getenv("NEWS_API_KEY")
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.LogFile = os.Getenv("LOG_FILE")
	cfg.ScheduleConfigPath = os.Getenv("SCHEDULE_CONFIG_PATH")

	cfg.NewsProvider = strings.ToLower(getEnvOrDefault("NEWS_PROVIDER", cfg.NewsProvider))
	cfg.FeedsConfigPath = getEnvOrDefault("FEEDS_CONFIG_PATH", cfg.FeedsConfigPath)
	cfg.HTTPAddr = getEnvOrDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.KafkaTopic = getEnvOrDefault("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.ReleaseTimezone = getEnvOrDefault("RELEASE_TIMEZONE", cfg.ReleaseTimezone)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv("RELEASE_TIMES"); v != "" {
		cfg.ReleaseTimes = splitList(v)
	}

	cfg.NewsPageSize = getEnvIntOrDefault("NEWS_PAGE_SIZE", cfg.NewsPageSize)
	cfg.NewsLimit = getEnvIntOrDefault("NEWS_LIMIT", cfg.NewsLimit)
	cfg.BiasThreshold = getEnvIntOrDefault("BIAS_THRESHOLD", cfg.BiasThreshold)
	cfg.APIBurst = getEnvIntOrDefault("API_BURST", cfg.APIBurst)
	if v := os.Getenv("API_RPS"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil && val > 0 {
			cfg.APIRPS = val
		}
	}

	cfg.NewsTimeout = getEnvDurationOrDefault("NEWS_TIMEOUT", cfg.NewsTimeout)
	cfg.ArticleTimeout = getEnvDurationOrDefault("ARTICLE_TIMEOUT", cfg.ArticleTimeout)
	cfg.ArticleCacheTTL = getEnvDurationOrDefault("ARTICLE_CACHE_TTL", cfg.ArticleCacheTTL)
	cfg.MarketRefresh = getEnvDurationOrDefault("MARKET_REFRESH", cfg.MarketRefresh)
	cfg.NewsRefresh = getEnvDurationOrDefault("NEWS_REFRESH", cfg.NewsRefresh)
	cfg.RequestTimeout = getEnvDurationOrDefault("REQUEST_TIMEOUT", cfg.RequestTimeout)

	cfg.AutoRefresh = getEnvBoolOrDefault("AUTO_REFRESH", cfg.AutoRefresh)
	cfg.AlertsEnabled = getEnvBoolOrDefault("ALERTS_ENABLED", cfg.AlertsEnabled)
	cfg.Debug = getEnvBoolOrDefault("DEBUG", cfg.Debug)

	if cfg.ScheduleConfigPath != "" {
		sched, err := LoadSchedule(cfg.ScheduleConfigPath)
		if err != nil {
			return nil, err
		}
		sched.Apply(cfg)
	}

	return cfg, cfg.Validate()
}

// Schedule is the optional YAML override of the refresh timers:
//
//	market_refresh: 5m
//	news_refresh: 10m
//	release_times: ["08:31", "10:01"]
//	release_timezone: America/New_York
type Schedule struct {
	MarketRefresh   string   `yaml:"market_refresh"`
	NewsRefresh     string   `yaml:"news_refresh"`
	ReleaseTimes    []string `yaml:"release_times"`
	ReleaseTimezone string   `yaml:"release_timezone"`
	AutoRefresh     *bool    `yaml:"auto_refresh"`
}

// LoadSchedule reads a schedule file.
func LoadSchedule(path string) (*Schedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s Schedule
	if err := yaml.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &s, nil
}

// Apply copies the set fields of s onto cfg. Malformed durations are left
// for Validate to report.
func (s *Schedule) Apply(cfg *Config) {
	if d, err := time.ParseDuration(s.MarketRefresh); err == nil {
		cfg.MarketRefresh = d
	} else if s.MarketRefresh != "" {
		cfg.MarketRefresh = -1
	}
	if d, err := time.ParseDuration(s.NewsRefresh); err == nil {
		cfg.NewsRefresh = d
	} else if s.NewsRefresh != "" {
		cfg.NewsRefresh = -1
	}
	if len(s.ReleaseTimes) > 0 {
		cfg.ReleaseTimes = s.ReleaseTimes
	}
	if s.ReleaseTimezone != "" {
		cfg.ReleaseTimezone = s.ReleaseTimezone
	}
	if s.AutoRefresh != nil {
		cfg.AutoRefresh = *s.AutoRefresh
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseClock parses an "HH:MM" wall clock time.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

func (c *Config) Validate() error {
	switch c.NewsProvider {
	case ProviderNewsAPI, ProviderRSS:
	default:
		return fmt.Errorf("NEWS_PROVIDER must be %q or %q", ProviderNewsAPI, ProviderRSS)
	}
	if c.NewsLimit <= 0 {
		return fmt.Errorf("NEWS_LIMIT must be positive")
	}
	if c.NewsPageSize <= 0 || c.NewsPageSize > 100 {
		return fmt.Errorf("NEWS_PAGE_SIZE must be between 1 and 100")
	}
	if c.MarketRefresh <= 0 || c.NewsRefresh <= 0 {
		return fmt.Errorf("refresh intervals must be positive durations")
	}
	for _, rt := range c.ReleaseTimes {
		if _, _, err := ParseClock(rt); err != nil {
			return fmt.Errorf("RELEASE_TIMES: %w", err)
		}
	}
	if _, err := time.LoadLocation(c.ReleaseTimezone); err != nil {
		return fmt.Errorf("RELEASE_TIMEZONE: %w", err)
	}
	if c.BiasThreshold < 1 {
		return fmt.Errorf("BIAS_THRESHOLD must be at least 1")
	}
	if c.APIBurst < 1 {
		return fmt.Errorf("API_BURST must be at least 1")
	}
	return nil
}

// Location returns the release time zone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReleaseTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TelegramEnabled reports whether alerts can be delivered.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}
