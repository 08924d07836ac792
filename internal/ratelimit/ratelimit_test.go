package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourtesyLimiter_Delay(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	r := NewCourtesyLimiter(3*time.Second, 500*time.Millisecond, 2*time.Second)
	r.jitter = func(n int64) int64 { return n / 2 }

	assert.Zero(t, r.delay(base), "first call never waits")

	r.lastAction = base
	assert.Equal(t, 2*time.Second+1250*time.Millisecond, r.delay(base.Add(time.Second)))
	assert.Zero(t, r.delay(base.Add(3*time.Second)))
	assert.Zero(t, r.delay(base.Add(10*time.Second)))
}

func TestCourtesyLimiter_FixedJitter(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	r := NewCourtesyLimiter(time.Second, 200*time.Millisecond, 200*time.Millisecond)
	r.lastAction = base
	assert.Equal(t, 700*time.Millisecond, r.delay(base.Add(500*time.Millisecond)))
}

func TestCourtesyLimiter_Wait(t *testing.T) {
	r := NewCourtesyLimiter(30*time.Millisecond, 0, 0)

	require.NoError(t, r.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestCourtesyLimiter_WaitCancelled(t *testing.T) {
	r := NewCourtesyLimiter(time.Hour, 0, 0)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.Canceled)
}

func TestCourtesyLimiter_SetInterval(t *testing.T) {
	r := NewCourtesyLimiter(time.Hour, 0, 0)
	r.SetInterval(0, 0, 0)

	require.NoError(t, r.Wait(context.Background()))
	require.NoError(t, r.Wait(context.Background()))
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Wait(context.Background()))
}
