package ratelimit

import (
	"context"
	"sync"
	"time"
)

// FixedWindow admits at most limit calls per window.
type FixedWindow struct {
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	mu          sync.Mutex
}

// NewFixedWindow creates a fixed window limiter of RequestsPerSec calls per Window.
func NewFixedWindow(cfg Config) *FixedWindow {
	cfg = applyDefaults(cfg)

	limit := int(cfg.RequestsPerSec * cfg.Window.Seconds())
	if limit < 1 {
		limit = 1
	}
	return &FixedWindow{
		limit:       limit,
		window:      cfg.Window,
		windowStart: time.Now(),
	}
}

// Wait blocks until the call fits in a window or ctx is done.
func (fw *FixedWindow) Wait(ctx context.Context) error {
	for {
		if fw.Allow() {
			return nil
		}
		if err := sleep(ctx, fw.Reserve()); err != nil {
			return err
		}
	}
}

// Allow counts the call if the current window has room.
func (fw *FixedWindow) Allow() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.roll(time.Now())
	if fw.count < fw.limit {
		fw.count++
		return true
	}
	return false
}

// Reserve returns the wait until the next window opens, or 0 if there is room.
func (fw *FixedWindow) Reserve() time.Duration {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := time.Now()
	fw.roll(now)
	if fw.count < fw.limit {
		return 0
	}
	return fw.window - now.Sub(fw.windowStart)
}

// Reset starts a fresh window.
func (fw *FixedWindow) Reset() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.count = 0
	fw.windowStart = time.Now()
}

func (fw *FixedWindow) roll(now time.Time) {
	if now.Sub(fw.windowStart) >= fw.window {
		fw.count = 0
		fw.windowStart = now
	}
}
