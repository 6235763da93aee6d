package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter_Unlimited(t *testing.T) {
	r := NewRateLimiter(0, 0)
	assert.Nil(t, r)

	require.NoError(t, r.Wait(context.Background()))
	assert.True(t, r.Allow())
	r.Backoff(time.Second)
}

func TestRateLimiter_Burst(t *testing.T) {
	r := NewRateLimiter(1, 2)
	require.NotNil(t, r)

	assert.True(t, r.Allow())
	assert.True(t, r.Allow())
	assert.False(t, r.Allow())
}

func TestRateLimiter_Backoff(t *testing.T) {
	r := NewRateLimiter(1000, 10)
	r.Backoff(30 * time.Millisecond)
	assert.False(t, r.Allow())

	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRateLimiter_BackoffKeepsLongerPause(t *testing.T) {
	r := NewRateLimiter(1000, 10)
	r.Backoff(time.Hour)
	r.Backoff(time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	r := NewRateLimiter(1000, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, r.Wait(ctx))
}
