package ratelimit

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Policy bounds a retry loop.
//
// With Multiplier == 0 every delay is drawn uniformly from [MinDelay, MaxDelay].
// Otherwise the delay starts at MinDelay, grows by Multiplier per attempt with
// +/-25% jitter, and is capped at MaxDelay.
type Policy struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	Multiplier  float64

	// OnRetry, when set, observes each failed attempt before the sleep.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Backoff returns the delay to sleep after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	lo, hi := p.MinDelay, p.MaxDelay
	if hi < lo {
		hi = lo
	}

	if p.Multiplier == 0 {
		if hi == lo {
			return lo
		}
		return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
	}

	base := float64(lo) * math.Pow(p.Multiplier, float64(attempt-1))
	if base > float64(hi) {
		base = float64(hi)
	}
	backoff := base + base*0.25*(2*rand.Float64()-1)
	if backoff < 0 {
		backoff = 0
	}
	if backoff > float64(hi) {
		backoff = float64(hi)
	}
	return time.Duration(backoff)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, returns a permanent error, attempts run out,
// or ctx is done. The last error is returned.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}
