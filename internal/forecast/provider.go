// Package forecast produces the scroller text included in every published
// snapshot. Text comes from one of four sources (a locally computed
// Zambretti forecast, a remote API, a local file, or fixed text) and is
// refreshed on its own schedule, decoupled from the publish loop.
package forecast

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/gauge-data-service/internal/observability"
)

// Provider supplies one forecast string. Implementations may block on I/O
// and must honor ctx cancellation.
type Provider interface {
	Text(ctx context.Context, now time.Time) (string, error)
}

// Refresher polls a Provider on a fixed interval and caches the latest
// successful result. A failed refresh keeps the previous text, so sinks
// never see an empty scroller because an upstream hiccuped.
type Refresher struct {
	provider   Provider
	interval   time.Duration
	substitute bool
	logger     *zap.Logger

	mu   sync.RWMutex
	text string
}

// NewRefresher builds a Refresher. interval must be positive.
func NewRefresher(p Provider, interval time.Duration, substitute bool, logger *zap.Logger) *Refresher {
	return &Refresher{
		provider:   p,
		interval:   interval,
		substitute: substitute,
		logger:     logger,
	}
}

// Run refreshes immediately and then on every interval tick until ctx is
// cancelled. Intended to be run in its own goroutine.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	text, err := r.provider.Text(ctx, time.Now())
	if err != nil {
		observability.ForecastRefreshFailuresTotal.Inc()
		r.logger.Warn("forecast refresh failed, keeping cached text", zap.Error(err))
		return
	}

	r.mu.Lock()
	r.text = text
	r.mu.Unlock()
	r.logger.Debug("forecast refreshed", zap.Int("length", len(text)))
}

// Current returns the cached forecast text, with time directives expanded
// against now when substitution is enabled. Empty until the first
// successful refresh.
func (r *Refresher) Current(now time.Time) string {
	r.mu.RLock()
	text := r.text
	r.mu.RUnlock()

	if r.substitute {
		return Strftime(text, now)
	}
	return text
}
