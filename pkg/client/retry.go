package client

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digikey_retries_total",
		Help: "Total number of retry attempts by endpoint",
	}, []string{"endpoint"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "digikey_retry_backoff_seconds",
		Help:    "Backoff duration for retries by endpoint",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	}, []string{"endpoint"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "digikey_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by endpoint",
	}, []string{"endpoint"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxRetries is the number of attempts before giving up.
	MaxRetries int

	// BackoffFactor is the base of the exponential sleep formula: the
	// sleep after failed attempt n is BackoffFactor^n seconds.
	BackoffFactor float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		BackoffFactor: 2.0,
	}
}

// backoffFor returns the sleep duration after failed attempt n (1-based).
func (c RetryConfig) backoffFor(attempt int) time.Duration {
	return time.Duration(math.Pow(c.BackoffFactor, float64(attempt)) * float64(time.Second))
}

// sleepFunc waits for the given duration or until ctx is cancelled.
type sleepFunc func(ctx context.Context, d time.Duration) error

func waitFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryWithRefresh executes fn until it succeeds or MaxRetries attempts
// have failed.
//
// After every failed attempt, including the last, it sleeps
// BackoffFactor^attempt seconds and then refreshes the credential,
// whether or not the failure was auth-related. A refresh failure is
// logged and recorded as the last error.
//
// Exhaustion returns ErrRetryExhausted wrapping the last error. A
// non-retryable error (404 on the detail path) is returned immediately.
func retryWithRefresh(ctx context.Context, cfg RetryConfig, endpoint string,
	logger zerolog.Logger, sleep sleepFunc,
	fn func() error, refresh func(context.Context) error) error {

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		if !shouldRetry(err) {
			return err
		}

		lastErr = err
		backoff := cfg.backoffFor(attempt)

		retriesTotal.WithLabelValues(endpoint).Inc()
		retryBackoffSeconds.WithLabelValues(endpoint).Observe(backoff.Seconds())

		logger.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Int("max_retries", cfg.MaxRetries).
			Dur("backoff", backoff).
			Msg("Request failed, backing off before retry")

		if err := sleep(ctx, backoff); err != nil {
			logger.Warn().
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		if err := refresh(ctx); err != nil {
			logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Credential refresh failed")
			lastErr = err
		}
	}

	retryExhaustedTotal.WithLabelValues(endpoint).Inc()
	logger.Error().
		Str("endpoint", endpoint).
		Int("max_retries", cfg.MaxRetries).
		Msg("All retry attempts failed")

	return fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, cfg.MaxRetries, lastErr)
}
