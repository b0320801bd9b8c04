package fetch

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/beautydex/harvester/internal/harvest"
)

// LinearRetryPolicy retries transient failures with a linearly increasing
// delay. Catalog harvests favor predictable politeness over fast convergence,
// so the wait grows by a fixed step instead of doubling.
type LinearRetryPolicy struct {
	maxAttempts int
	step        time.Duration
}

// NewLinearRetryPolicy builds a policy with the given attempt ceiling. Zero
// or negative values fall back to defaults.
func NewLinearRetryPolicy(maxAttempts int, step time.Duration) *LinearRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if step <= 0 {
		step = 2 * time.Second
	}
	return &LinearRetryPolicy{maxAttempts: maxAttempts, step: step}
}

// ShouldRetry reports whether the failed attempt (1-based) is worth
// repeating. Cancellation and hard HTTP failures are final; throttling and
// transport timeouts are not.
func (p *LinearRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, harvest.ErrHardFailure) || errors.Is(err, harvest.ErrRobotsDisallowed) {
		return false
	}
	if errors.Is(err, harvest.ErrRateLimited) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// Backoff returns the delay before the next attempt.
func (p *LinearRetryPolicy) Backoff(attempt int) time.Duration {
	return time.Duration(attempt) * p.step
}
