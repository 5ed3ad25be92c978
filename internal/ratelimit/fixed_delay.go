package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedDelay enforces a minimum gap between consecutive calls across all callers.
type FixedDelay struct {
	delay time.Duration
	next  time.Time
	mu    sync.Mutex
}

// NewFixedDelay creates a limiter that spaces calls by cfg.FixedDelay.
func NewFixedDelay(cfg Config) *FixedDelay {
	cfg = applyDefaults(cfg)
	return &FixedDelay{delay: cfg.FixedDelay}
}

// Wait claims the next slot and sleeps until it opens.
func (fd *FixedDelay) Wait(ctx context.Context) error {
	fd.mu.Lock()
	now := time.Now()
	slot := fd.next
	if slot.Before(now) {
		slot = now
	}
	fd.next = slot.Add(fd.delay)
	fd.mu.Unlock()

	return sleep(ctx, slot.Sub(now))
}

// Allow claims the slot only if it is already open.
func (fd *FixedDelay) Allow() bool {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	now := time.Now()
	if now.Before(fd.next) {
		return false
	}
	fd.next = now.Add(fd.delay)
	return true
}

// Reserve returns the time until the next slot opens.
func (fd *FixedDelay) Reserve() time.Duration {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if wait := time.Until(fd.next); wait > 0 {
		return wait
	}
	return 0
}

// Reset forgets the previous call.
func (fd *FixedDelay) Reset() {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.next = time.Time{}
}
