package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces out operations to at most perMinute per minute. Unlike
// a token bucket it never bursts: callers are released one interval apart.
type RateLimiter struct {
	interval time.Duration
	mu       sync.Mutex
	next     time.Time // earliest time the next caller may proceed
}

// NewRateLimiter creates a RateLimiter allowing perMinute operations per
// minute. The first Wait call passes immediately.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
		next:     time.Now(),
	}
}

// Wait blocks until this caller's slot arrives or ctx is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	slot := rl.next
	if slot.Before(now) {
		slot = now
	}
	rl.next = slot.Add(rl.interval)
	rl.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
