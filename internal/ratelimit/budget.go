// Package ratelimit implements the request pacing budget: a token bucket for
// steady-state spacing plus a feedback penalty that grows after rate-limit
// responses and decays on success.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds pacing parameters.
type Config struct {
	// RequestsPerSecond is the steady-state request rate. Zero or negative
	// means unlimited.
	RequestsPerSecond float64
	// Burst is the token bucket depth.
	Burst int
	// PenaltyStep is added to the penalty delay for each rate-limit response.
	PenaltyStep time.Duration
	// MaxPenalty caps the accumulated penalty delay.
	MaxPenalty time.Duration
}

// Budget paces outgoing requests. Safe for concurrent use.
type Budget struct {
	limiter *rate.Limiter
	logger  *zap.Logger

	mu          sync.Mutex
	penalty     time.Duration
	penaltyStep time.Duration
	maxPenalty  time.Duration
}

// New creates a Budget from the config, applying defaults.
func New(cfg Config, logger *zap.Logger) *Budget {
	r := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	step := cfg.PenaltyStep
	if step <= 0 {
		step = 10 * time.Second
	}
	maxPenalty := cfg.MaxPenalty
	if maxPenalty <= 0 {
		maxPenalty = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Budget{
		limiter:     rate.NewLimiter(r, burst),
		logger:      logger,
		penaltyStep: step,
		maxPenalty:  maxPenalty,
	}
}

// BeforeRequest blocks until the next request may be sent: first the token
// bucket, then any accumulated penalty delay. Returns early on context
// cancellation.
func (b *Budget) BeforeRequest(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	b.mu.Lock()
	penalty := b.penalty
	b.mu.Unlock()
	if penalty <= 0 {
		return nil
	}
	b.logger.Debug("Applying rate-limit penalty", zap.Duration("delay", penalty))
	timer := time.NewTimer(penalty)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// OnResponse feeds a status code back into the budget. Rate-limit responses
// grow the penalty linearly; successful responses shrink it by one step.
func (b *Budget) OnResponse(statusCode int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case statusCode == http.StatusTooManyRequests:
		b.penalty += b.penaltyStep
		if b.penalty > b.maxPenalty {
			b.penalty = b.maxPenalty
		}
		b.logger.Warn("Rate limited by server; increasing delay",
			zap.Duration("penalty", b.penalty),
		)
	case statusCode >= 200 && statusCode < 300:
		b.penalty -= b.penaltyStep
		if b.penalty < 0 {
			b.penalty = 0
		}
	}
}

// Penalty reports the current accumulated penalty delay.
func (b *Budget) Penalty() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.penalty
}
