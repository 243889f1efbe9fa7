// Package render formats dashboard data for the terminal.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/deusflow/macrotracker/internal/bias"
	"github.com/deusflow/macrotracker/internal/macro"
	"github.com/deusflow/macrotracker/internal/news"
	"github.com/deusflow/macrotracker/internal/scraper"
)

// Missing is shown in place of an absent value.
const Missing = "—"

var printer = message.NewPrinter(language.English)

// FormatNumber renders v with a fixed number of decimals and thousands
// separators.
func FormatNumber(v macro.Value, decimals int) string {
	f, ok := v.Get()
	if !ok {
		return Missing
	}
	if decimals < 0 {
		decimals = 0
	}
	return printer.Sprintf(fmt.Sprintf("%%.%df", decimals), f)
}

// FormatPrice renders a dollar amount, e.g. "$2,345.60".
func FormatPrice(v macro.Value, decimals int) string {
	s := FormatNumber(v, decimals)
	if s == Missing {
		return s
	}
	return "$" + s
}

// FormatPercent renders a rate with a percent sign.
func FormatPercent(v macro.Value, decimals int) string {
	return withUnit(FormatNumber(v, decimals), "%")
}

// FormatPayrolls renders a payrolls level in thousands, e.g. "158,534K".
func FormatPayrolls(v macro.Value) string {
	f, ok := v.Get()
	if !ok {
		return Missing
	}
	return FormatNumber(macro.Some(f/1000), 0) + "K"
}

// TimeAgo renders the age of t relative to now.
func TimeAgo(t, now time.Time) string {
	secs := int(now.Sub(t) / time.Second)
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds ago", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm ago", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%dh ago", secs/3600)
	default:
		return fmt.Sprintf("%dd ago", secs/86400)
	}
}

// Snapshot renders the indicator panel and, when present, the bias.
func Snapshot(o macro.Outcome, b *bias.Result, now time.Time) string {
	var content strings.Builder

	if !o.OK() {
		content.WriteString(errorStyle.Render("Macro data unavailable: " + o.Error))
	} else {
		s := o.Snapshot
		rows := []struct {
			label string
			value string
		}{
			{"Gold", FormatPrice(s.GoldPrice, 2)},
			{"Dollar index", FormatNumber(s.DollarIndex, 2)},
			{"CPI", FormatNumber(s.CPI, 1)},
			{"10Y yield", FormatPercent(s.TenYearYield, 2)},
			{"Fed funds", FormatPercent(s.FedRate, 2)},
			{"Payrolls", FormatPayrolls(s.NonfarmPayrolls)},
		}
		for _, r := range rows {
			content.WriteString(labelStyle.Render(r.label))
			content.WriteString(valueStyle.Render(r.value))
			content.WriteString("\n")
		}
		content.WriteString(mutedStyle.Render("Updated " + TimeAgo(s.LastUpdated, now)))
	}

	if b != nil {
		content.WriteString("\n\n")
		content.WriteString(Bias(*b))
	}

	title := titleStyle.Render("Macro Snapshot")
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, content.String()))
}

// Bias renders the label, signed score and contributing factors.
func Bias(b bias.Result) string {
	var sb strings.Builder
	sb.WriteString(biasStyle(b.Score).Render(fmt.Sprintf("%s (%+d)", b.Label, b.Score)))
	for _, f := range b.Factors {
		sb.WriteString("\n  • ")
		sb.WriteString(f)
	}
	return sb.String()
}

// Feed renders the news list, newest first as produced by the pipeline.
func Feed(f news.Feed, now time.Time) string {
	var content strings.Builder

	if f.FetchError != "" {
		content.WriteString(errorStyle.Render("News unavailable: " + f.FetchError))
		content.WriteString("\n")
	}
	if len(f.Items) == 0 {
		content.WriteString(mutedStyle.Render("No news available"))
	}
	for i, item := range f.Items {
		if i > 0 {
			content.WriteString("\n")
		}
		content.WriteString(valueStyle.Render(item.Title))
		content.WriteString("\n")
		content.WriteString(mutedStyle.Render(fmt.Sprintf("%s · %s", item.Source, TimeAgo(item.PublishedAt, now))))
		content.WriteString("\n")
		content.WriteString(mutedStyle.Render(item.URL))
	}

	c := f.Counters
	footer := mutedStyle.Render(fmt.Sprintf("%d received · %d relevant · %d unique", c.Total, c.AfterRelevance, c.AfterDedup))

	title := titleStyle.Render("News")
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, content.String(), "", footer))
}

// Article renders extracted article text.
func Article(a scraper.Article) string {
	var content strings.Builder
	if a.Title != "" {
		content.WriteString(valueStyle.Render(a.Title))
		content.WriteString("\n\n")
	}
	content.WriteString(lipgloss.NewStyle().Width(80).Render(a.Content))
	if a.Digest != "" {
		content.WriteString("\n\n")
		content.WriteString(titleStyle.Render("Digest"))
		content.WriteString("\n")
		content.WriteString(lipgloss.NewStyle().Width(80).Render(a.Digest))
	}
	content.WriteString("\n\n")
	content.WriteString(mutedStyle.Render(a.URL))

	return panelStyle.Render(content.String())
}

func withUnit(s, unit string) string {
	if s == Missing {
		return s
	}
	return s + unit
}
