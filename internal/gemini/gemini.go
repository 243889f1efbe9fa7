package gemini

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/macrotracker/internal/logger"
	"github.com/deusflow/macrotracker/internal/ratelimit"
)

const (
	Provider     = "gemini"
	DefaultModel = "gemini-1.5-flash"

	maxPromptChars = 6000
)

var ErrEmptyResponse = errors.New("no response from Gemini")

type Client struct {
	client   *genai.Client
	limiter  *ratelimit.Limiter
	generate func(ctx context.Context, prompt string) (string, error)
}

// Digest is a short macro-focused reading of an article.
type Digest struct {
	Summary string `json:"summary"`
	Impact  string `json:"impact,omitempty"`
}

func NewClient(ctx context.Context, apiKey, model string, limiter *ratelimit.Limiter) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}

	gm := client.GenerativeModel(model)
	c := &Client{client: client, limiter: limiter}
	c.generate = func(ctx context.Context, prompt string) (string, error) {
		resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", fmt.Errorf("failed to generate content: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", ErrEmptyResponse
		}
		return fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]), nil
	}
	return c, nil
}

func (c *Client) Close() {
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			logger.Warn("closing gemini client", "error", err)
		}
	}
}

// Summarize asks the model for a summary of the article and its likely
// effect on gold and the dollar.
func (c *Client) Summarize(ctx context.Context, title, content string) (Digest, error) {
	if err := c.limiter.Wait(ctx, Provider); err != nil {
		return Digest{}, err
	}

	text, err := c.generate(ctx, buildPrompt(title, sanitize(content)))
	if err != nil {
		return Digest{}, err
	}
	return parseResponse(text)
}

// sanitize collapses whitespace and trims content to a prompt-sized
// length, preferring to cut at a sentence end.
func sanitize(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) <= maxPromptChars {
		return content
	}
	trimmed := string([]rune(content)[:maxPromptChars])
	if idx := strings.LastIndex(trimmed, ". "); idx > 1200 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed + "\n[TRUNCATED]"
}

func buildPrompt(title, content string) string {
	return fmt.Sprintf(`Read this financial news article.

ARTICLE:
Title: %s
Content: %s

TASKS:
1. Summarize the article in at most three sentences.
2. In one sentence, say how it is likely to affect gold and the US dollar.

Do not add introductions. Answer strictly in this format:

SUMMARY: <summary>
IMPACT: <impact>
`, title, content)
}

var (
	summaryLabel = regexp.MustCompile(`(?i)^\**\s*summary\s*\**\s*:\s*`)
	impactLabel  = regexp.MustCompile(`(?i)^\**\s*impact\s*\**\s*:\s*`)
)

func parseResponse(response string) (Digest, error) {
	var summary, impact strings.Builder
	var current *strings.Builder

	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		switch {
		case summaryLabel.MatchString(line):
			current = &summary
			line = summaryLabel.ReplaceAllString(line, "")
		case impactLabel.MatchString(line):
			current = &impact
			line = impactLabel.ReplaceAllString(line, "")
		}
		if current == nil || line == "" {
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(line)
	}

	d := Digest{
		Summary: strings.TrimSpace(summary.String()),
		Impact:  strings.TrimSpace(impact.String()),
	}
	if d.Summary == "" {
		// Unlabelled answer: keep it whole as the summary.
		d.Summary = strings.Join(strings.Fields(response), " ")
	}
	if d.Summary == "" {
		return Digest{}, ErrEmptyResponse
	}
	return d, nil
}
