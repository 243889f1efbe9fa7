package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/deusflow/macrotracker/internal/logger"
)

// ErrQuotaExceeded is returned when a provider has used its daily quota.
var ErrQuotaExceeded = errors.New("daily quota exceeded")

// Limit describes how hard a provider may be called.
type Limit struct {
	// PerMinute is the sustained request rate. Zero means unlimited.
	PerMinute float64
	Burst     int
	// Daily caps requests per 24h window. Zero means no cap.
	Daily int
}

// Usage is a snapshot of one provider's counters.
type Usage struct {
	Used    int `json:"used"`
	Limit   int `json:"limit"`
	Blocked int `json:"blocked"`
}

type provider struct {
	limiter *rate.Limiter
	daily   int
	used    int
	blocked int
}

// Limiter paces outgoing provider requests and tracks daily quotas.
// Providers that were never registered are not limited.
type Limiter struct {
	mu        sync.Mutex
	providers map[string]*provider
	resetTime time.Time
	now       func() time.Time
}

func New() *Limiter {
	return &Limiter{
		providers: make(map[string]*provider),
		resetTime: time.Now().Add(24 * time.Hour),
		now:       time.Now,
	}
}

// Register sets the limit for name, replacing any earlier one.
func (l *Limiter) Register(name string, lim Limit) {
	l.mu.Lock()
	defer l.mu.Unlock()

	every := rate.Inf
	if lim.PerMinute > 0 {
		every = rate.Limit(lim.PerMinute / 60.0)
	}
	burst := lim.Burst
	if burst <= 0 {
		burst = 1
	}
	l.providers[name] = &provider{
		limiter: rate.NewLimiter(every, burst),
		daily:   lim.Daily,
	}
}

// Wait blocks until a request to name is allowed, or fails with
// ErrQuotaExceeded or the context error. A nil Limiter allows everything.
func (l *Limiter) Wait(ctx context.Context, name string) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	l.checkReset()
	p, ok := l.providers[name]
	if !ok {
		l.mu.Unlock()
		return nil
	}
	if p.daily > 0 && p.used >= p.daily {
		p.blocked++
		l.mu.Unlock()
		logger.Warn("provider quota reached", "provider", name, "used", p.used, "limit", p.daily)
		return fmt.Errorf("%s: %w", name, ErrQuotaExceeded)
	}
	p.used++
	limiter := p.limiter
	l.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit wait: %w", name, err)
	}
	return nil
}

// Stats returns the counters of every registered provider.
func (l *Limiter) Stats() map[string]Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]Usage, len(l.providers))
	for name, p := range l.providers {
		out[name] = Usage{Used: p.used, Limit: p.daily, Blocked: p.blocked}
	}
	return out
}

// checkReset clears daily counters once the window has passed. Caller holds mu.
func (l *Limiter) checkReset() {
	now := l.now()
	if now.Before(l.resetTime) {
		return
	}
	logger.Info("resetting provider quotas")
	for _, p := range l.providers {
		p.used = 0
		p.blocked = 0
	}
	l.resetTime = now.Add(24 * time.Hour)
}
