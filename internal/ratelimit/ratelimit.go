package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
}

// CourtesyLimiter spaces requests at least minInterval apart. When a call
// arrives early it also waits a random jitter drawn from
// [jitterMin, jitterMax).
type CourtesyLimiter struct {
	minInterval time.Duration
	jitterMin   time.Duration
	jitterMax   time.Duration
	lastAction  time.Time
	mu          sync.Mutex

	now    func() time.Time
	jitter func(n int64) int64
}

func NewCourtesyLimiter(minInterval, jitterMin, jitterMax time.Duration) *CourtesyLimiter {
	if jitterMax < jitterMin {
		jitterMax = jitterMin
	}
	return &CourtesyLimiter{
		minInterval: minInterval,
		jitterMin:   jitterMin,
		jitterMax:   jitterMax,
		now:         time.Now,
		jitter:      rand.Int63n,
	}
}

func (r *CourtesyLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if waitTime := r.delay(r.now()); waitTime > 0 {
		timer := time.NewTimer(waitTime)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	r.lastAction = r.now()
	return nil
}

// SetInterval changes the spacing policy for subsequent calls.
func (r *CourtesyLimiter) SetInterval(minInterval, jitterMin, jitterMax time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.minInterval = minInterval
	r.jitterMin = jitterMin
	r.jitterMax = max(jitterMax, jitterMin)
}

// delay returns how long a call made at now has to wait.
func (r *CourtesyLimiter) delay(now time.Time) time.Duration {
	if r.lastAction.IsZero() {
		return 0
	}
	elapsed := now.Sub(r.lastAction)
	if elapsed >= r.minInterval {
		return 0
	}
	return r.minInterval - elapsed + r.calculateJitter()
}

func (r *CourtesyLimiter) calculateJitter() time.Duration {
	delta := r.jitterMax - r.jitterMin
	if delta <= 0 {
		return r.jitterMin
	}
	return r.jitterMin + time.Duration(r.jitter(int64(delta)))
}

// Noop never waits.
type Noop struct{}

func (Noop) Wait(ctx context.Context) error {
	return ctx.Err()
}
