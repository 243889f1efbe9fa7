package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/deusflow/macrotracker/internal/cache"
	"github.com/deusflow/macrotracker/internal/logger"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 6 * time.Hour

	// FallbackContent is returned when no article text could be found.
	FallbackContent = "Content could not be extracted from this article. Please visit the original source for the full story."

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	maxContentRunes = 1500
	minSentenceLen  = 20
	minContentLen   = 100
	maxBodyBytes    = 5 << 20
)

var (
	ErrMissingURL = errors.New("url parameter is required")
	ErrInvalidURL = errors.New("invalid url")
)

// selectors are tried in order; the first block that cleans to enough text
// wins.
var selectors = []string{
	"article",
	"main",
	"div[class*=story]",
	"div[class*=article]",
	"div[class*=content]",
	"div[class*=post]",
}

var (
	urlRe     = regexp.MustCompile(`https?://\S+`)
	emailRe   = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	cssRuleRe = regexp.MustCompile(`[.#][a-zA-Z_-][a-zA-Z0-9_-]*\s*\{[^}]*\}`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// Article is the readable text of a news page.
type Article struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	Extracted bool   `json:"extracted"`
	Digest    string `json:"digest,omitempty"`
}

type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
	// Cache is optional; without it every call fetches.
	Cache *cache.Cache[Article]
}

// Extractor fetches pages and pulls out their main text.
type Extractor struct {
	client *http.Client
	cache  *cache.Cache[Article]
	ttl    time.Duration
}

func New(cfg Config) *Extractor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Extractor{
		client: &http.Client{Timeout: timeout},
		cache:  cfg.Cache,
		ttl:    ttl,
	}
}

// Extract returns the main text of the page at rawURL. A page that loads
// but has no recognisable article text yields Extracted=false and
// FallbackContent rather than an error.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (Article, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Article{}, ErrMissingURL
	}
	pageURL, err := url.Parse(rawURL)
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return Article{}, fmt.Errorf("%w %q", ErrInvalidURL, rawURL)
	}

	if e.cache != nil {
		if a, ok := e.cache.Get(rawURL); ok {
			logger.Debug("article cache hit", "url", rawURL)
			return a, nil
		}
	}

	body, err := e.fetch(ctx, rawURL)
	if err != nil {
		return Article{}, err
	}

	article := Article{URL: rawURL}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Article{}, fmt.Errorf("error parsing HTML: %w", err)
	}
	article.Title = extractTitle(doc)

	content := extractBestContent(doc)
	if content == "" {
		content = extractReadable(body, pageURL)
	}

	if content != "" {
		article.Content = content
		article.Extracted = true
	} else {
		logger.Warn("could not extract article", "url", rawURL)
		article.Content = FallbackContent
	}

	if e.cache != nil {
		e.cache.Set(rawURL, article, e.ttl)
	}
	return article, nil
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error reading page: %w", err)
	}
	return body, nil
}

// extractBestContent walks the selector cascade, then falls back to the
// first div holding at least two paragraphs.
func extractBestContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript").Remove()

	for _, selector := range selectors {
		block := doc.Find(selector).First()
		if block.Length() == 0 {
			continue
		}
		if cleaned := cleanContent(textOf(block)); len(cleaned) > minContentLen {
			return cleaned
		}
	}

	var content string
	doc.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		paragraphs := s.ChildrenFiltered("p")
		if paragraphs.Length() < 2 {
			return true
		}
		if cleaned := cleanContent(textOf(paragraphs)); len(cleaned) > minContentLen {
			content = cleaned
			return false
		}
		return true
	})
	return content
}

func extractReadable(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		logger.Debug("readability failed", "url", pageURL.String(), "error", err)
		return ""
	}
	if cleaned := cleanContent(article.TextContent); len(cleaned) > minContentLen {
		return cleaned
	}
	return ""
}

// textOf joins the text nodes under s with spaces so adjacent blocks do not
// run together.
func textOf(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				b.WriteString(c.Text())
				b.WriteByte(' ')
				return
			}
			walk(c)
		})
	}
	walk(s)
	return b.String()
}

// extractTitle gets article title
func extractTitle(doc *goquery.Document) string {
	for _, selector := range []string{"h1", "title"} {
		title := strings.TrimSpace(doc.Find(selector).First().Text())
		if title != "" {
			return title
		}
	}
	return ""
}

// cleanContent strips links, addresses and leftover CSS, then keeps only
// sentences longer than minSentenceLen, capped at maxContentRunes.
func cleanContent(text string) string {
	text = cssRuleRe.ReplaceAllString(text, "")
	text = urlRe.ReplaceAllString(text, "")
	text = emailRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
	if text == "" {
		return ""
	}

	var kept []string
	for _, sentence := range splitSentences(text) {
		if len(sentence) > minSentenceLen {
			kept = append(kept, sentence)
		}
	}

	out := strings.Join(kept, " ")
	if r := []rune(out); len(r) > maxContentRunes {
		out = string(r[:maxContentRunes])
	}
	return out
}

// splitSentences splits after '.', '!' or '?' when followed by whitespace.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				out = append(out, strings.TrimSpace(string(runes[start:i+1])))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}
