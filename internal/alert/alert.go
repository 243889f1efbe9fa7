// Package alert notifies when the market bias becomes strong.
package alert

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/deusflow/macrotracker/internal/bias"
	"github.com/deusflow/macrotracker/internal/logger"
	"github.com/deusflow/macrotracker/internal/macro"
	"github.com/deusflow/macrotracker/internal/metrics"
	"github.com/deusflow/macrotracker/internal/render"
)

const DefaultThreshold = 3

// Notifier delivers a formatted alert.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Watcher sends one alert each time the bias crosses the threshold with a
// new label. It re-arms once the score falls back below the threshold.
type Watcher struct {
	mu        sync.Mutex
	notifier  Notifier
	threshold int
	last      bias.Label
}

func NewWatcher(n Notifier, threshold int) *Watcher {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Watcher{notifier: n, threshold: threshold}
}

// Observe checks a freshly computed bias and reports whether an alert was
// sent. A failed delivery leaves the watcher armed for the next snapshot.
func (w *Watcher) Observe(ctx context.Context, r bias.Result, s macro.Snapshot) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if abs(r.Score) < w.threshold {
		if w.last != "" {
			logger.Debug("bias alert re-armed", "score", r.Score)
		}
		w.last = ""
		return false, nil
	}
	if r.Label == w.last {
		return false, nil
	}

	if err := w.notifier.Send(ctx, Message(r, s)); err != nil {
		return false, fmt.Errorf("send bias alert: %w", err)
	}

	w.last = r.Label
	metrics.Global.IncrementAlertsSent()
	logger.Info("bias alert sent", "label", r.Label, "score", r.Score)
	return true, nil
}

// Message formats an alert as Telegram HTML.
func Message(r bias.Result, s macro.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b> (%+d)\n", html.EscapeString(string(r.Label)), r.Score)
	for _, f := range r.Factors {
		fmt.Fprintf(&b, "• %s\n", html.EscapeString(f))
	}
	fmt.Fprintf(&b, "\nGold %s · DXY %s · CPI %s\n",
		render.FormatPrice(s.GoldPrice, 2),
		render.FormatNumber(s.DollarIndex, 2),
		render.FormatNumber(s.CPI, 1))
	fmt.Fprintf(&b, "10Y %s · Fed %s · NFP %s",
		render.FormatPercent(s.TenYearYield, 2),
		render.FormatPercent(s.FedRate, 2),
		render.FormatPayrolls(s.NonfarmPayrolls))
	return b.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
