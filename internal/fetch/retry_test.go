package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beautydex/harvester/internal/harvest"
)

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewLinearRetryPolicy(3, time.Second)

	rateLimited := fmt.Errorf("status 429: %w", harvest.ErrRateLimited)
	require.True(t, p.ShouldRetry(rateLimited, 1))
	require.True(t, p.ShouldRetry(rateLimited, 2))
	require.False(t, p.ShouldRetry(rateLimited, 3), "the attempt ceiling is final")

	require.False(t, p.ShouldRetry(nil, 1))
	require.False(t, p.ShouldRetry(context.Canceled, 1))
	require.False(t, p.ShouldRetry(fmt.Errorf("wrapped: %w", context.DeadlineExceeded), 1))
	require.False(t, p.ShouldRetry(harvest.ErrHardFailure, 1), "a definitive HTTP failure is not retried")
	require.False(t, p.ShouldRetry(harvest.ErrRobotsDisallowed, 1))

	require.True(t, p.ShouldRetry(errors.New("connection reset"), 1))
}

func TestBackoffGrowsLinearly(t *testing.T) {
	t.Parallel()

	p := NewLinearRetryPolicy(5, 2*time.Second)
	require.Equal(t, 2*time.Second, p.Backoff(1))
	require.Equal(t, 4*time.Second, p.Backoff(2))
	require.Equal(t, 6*time.Second, p.Backoff(3))
}

func TestPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewLinearRetryPolicy(0, 0)
	require.True(t, p.ShouldRetry(errors.New("boom"), 2))
	require.False(t, p.ShouldRetry(errors.New("boom"), 3))
	require.Equal(t, 2*time.Second, p.Backoff(1))
}
