// Package ratelimit paces outgoing requests and tracks the vendor's
// published rate limit budget. It reads the X-RateLimit-Remaining and
// X-RateLimit-Limit response headers to slow down before the API starts
// rejecting requests.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Thresholds for budget decisions.
const (
	// BudgetThresholdCritical pauses requests until the window resets when
	// remaining budget falls below this value.
	BudgetThresholdCritical = 3

	// BudgetThresholdWarning doubles the pacing interval when remaining
	// budget falls below this value.
	BudgetThresholdWarning = 10
)

// Budget is the most recent rate limit window reported by the API.
type Budget struct {
	// Remaining is the number of requests left in the current window,
	// from the X-RateLimit-Remaining header.
	Remaining int

	// Limit is the window size, from the X-RateLimit-Limit header.
	Limit int

	// ResetAt is when the window resets, derived from Retry-After when
	// present.
	ResetAt time.Time

	// LastUpdate is when these values were last observed.
	LastUpdate time.Time
}

// IsStale reports whether the observation is older than maxAge.
func (b *Budget) IsStale(maxAge time.Duration) bool {
	return time.Since(b.LastUpdate) > maxAge
}

// NeedsBlock reports whether requests should pause until the window resets.
func (b *Budget) NeedsBlock() bool {
	return b.Limit > 0 && b.Remaining < BudgetThresholdCritical
}

// NeedsSlowdown reports whether the pacing interval should be stretched.
func (b *Budget) NeedsSlowdown() bool {
	return b.Limit > 0 && b.Remaining < BudgetThresholdWarning && !b.NeedsBlock()
}

// TimeUntilReset returns the duration until the window resets, or 0 if the
// reset time has passed or was never reported.
func (b *Budget) TimeUntilReset() time.Duration {
	d := time.Until(b.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// budgetTracker holds the latest Budget behind a mutex.
type budgetTracker struct {
	mu     sync.Mutex
	budget Budget
}

// observe parses rate limit headers into the tracked budget. Responses
// without the headers leave the budget untouched.
func (t *budgetTracker) observe(headers http.Header) bool {
	remainStr := headers.Get("X-RateLimit-Remaining")
	if remainStr == "" {
		return false
	}
	remaining, err := strconv.Atoi(remainStr)
	if err != nil {
		return false
	}

	limit, _ := strconv.Atoi(headers.Get("X-RateLimit-Limit"))

	now := time.Now()
	budget := Budget{
		Remaining:  remaining,
		Limit:      limit,
		LastUpdate: now,
	}
	if retryAfter, err := strconv.Atoi(headers.Get("Retry-After")); err == nil {
		budget.ResetAt = now.Add(time.Duration(retryAfter) * time.Second)
	}

	t.mu.Lock()
	t.budget = budget
	t.mu.Unlock()
	return true
}

func (t *budgetTracker) current() Budget {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.budget
}
