package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPenaltyGrowsLinearlyAndCaps(t *testing.T) {
	t.Parallel()

	b := New(Config{
		PenaltyStep: 10 * time.Millisecond,
		MaxPenalty:  25 * time.Millisecond,
	}, nil)

	require.Zero(t, b.Penalty())

	b.OnResponse(http.StatusTooManyRequests)
	require.Equal(t, 10*time.Millisecond, b.Penalty())

	b.OnResponse(http.StatusTooManyRequests)
	require.Equal(t, 20*time.Millisecond, b.Penalty())

	b.OnResponse(http.StatusTooManyRequests)
	require.Equal(t, 25*time.Millisecond, b.Penalty(), "the penalty never exceeds its cap")
}

func TestPenaltyDecaysOnSuccess(t *testing.T) {
	t.Parallel()

	b := New(Config{PenaltyStep: 10 * time.Millisecond}, nil)
	b.OnResponse(http.StatusTooManyRequests)
	b.OnResponse(http.StatusTooManyRequests)

	b.OnResponse(http.StatusOK)
	require.Equal(t, 10*time.Millisecond, b.Penalty())

	b.OnResponse(http.StatusOK)
	require.Zero(t, b.Penalty())

	b.OnResponse(http.StatusOK)
	require.Zero(t, b.Penalty(), "the penalty never goes negative")
}

func TestPenaltyIgnoresOtherStatuses(t *testing.T) {
	t.Parallel()

	b := New(Config{PenaltyStep: 10 * time.Millisecond}, nil)
	b.OnResponse(http.StatusTooManyRequests)

	b.OnResponse(http.StatusNotFound)
	b.OnResponse(http.StatusInternalServerError)
	require.Equal(t, 10*time.Millisecond, b.Penalty())
}

func TestBeforeRequestAppliesPenalty(t *testing.T) {
	t.Parallel()

	b := New(Config{PenaltyStep: 30 * time.Millisecond}, nil)
	b.OnResponse(http.StatusTooManyRequests)

	start := time.Now()
	require.NoError(t, b.BeforeRequest(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestBeforeRequestHonorsCancellation(t *testing.T) {
	t.Parallel()

	b := New(Config{PenaltyStep: time.Hour}, nil)
	b.OnResponse(http.StatusTooManyRequests)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.BeforeRequest(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSteadyStatePacing(t *testing.T) {
	t.Parallel()

	b := New(Config{RequestsPerSecond: 50, Burst: 1}, nil)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, b.BeforeRequest(ctx))
	require.NoError(t, b.BeforeRequest(ctx))
	require.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond,
		"the second request waits for the bucket to refill")
}
