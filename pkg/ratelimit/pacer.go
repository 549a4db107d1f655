package ratelimit

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	budgetRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "digikey_rate_limit_remaining",
		Help: "Requests remaining in the current vendor rate limit window",
	})

	pacerBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digikey_rate_limit_blocks_total",
		Help: "Total requests paused until the rate limit window reset",
	})

	pacerSlowdownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "digikey_rate_limit_slowdowns_total",
		Help: "Total requests delayed an extra interval due to low remaining budget",
	})
)

// Pacer spaces outgoing requests at a fixed rate and backs off further
// when the observed budget runs low. Safe for concurrent use.
type Pacer struct {
	limiter *rate.Limiter
	tracker budgetTracker
	logger  zerolog.Logger

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer allowing requestsPerSecond sustained throughput
// with the given burst.
func NewPacer(requestsPerSecond float64, burst int, logger zerolog.Logger) *Pacer {
	return &Pacer{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		logger:  logger,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the next request may be sent. When the last observed
// budget is critical it additionally pauses until the reported window reset.
func (p *Pacer) Wait(ctx context.Context) error {
	budget := p.tracker.current()

	if budget.NeedsBlock() {
		wait := budget.TimeUntilReset()
		pacerBlocksTotal.Inc()
		p.logger.Warn().
			Int("remaining", budget.Remaining).
			Dur("wait", wait).
			Msg("Rate limit budget critical, pausing until window reset")
		if wait > 0 {
			if err := p.sleep(ctx, wait); err != nil {
				return err
			}
		}
	} else if budget.NeedsSlowdown() {
		pacerSlowdownsTotal.Inc()
		p.logger.Debug().
			Int("remaining", budget.Remaining).
			Msg("Rate limit budget low, stretching pacing interval")
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	return p.limiter.Wait(ctx)
}

// Observe records the vendor rate limit headers from a response.
func (p *Pacer) Observe(headers http.Header) {
	if !p.tracker.observe(headers) {
		return
	}
	budget := p.tracker.current()
	budgetRemaining.Set(float64(budget.Remaining))
}

// Budget returns the last observed rate limit window.
func (p *Pacer) Budget() Budget {
	return p.tracker.current()
}
