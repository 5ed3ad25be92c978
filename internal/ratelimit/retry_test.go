package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicyBackoffUniformBounds(t *testing.T) {
	p := Policy{MinDelay: 10 * time.Millisecond, MaxDelay: 30 * time.Millisecond}
	for i := 0; i < 200; i++ {
		d := p.Backoff(1 + i%5)
		if d < p.MinDelay || d > p.MaxDelay {
			t.Fatalf("uniform backoff %v outside [%v, %v]", d, p.MinDelay, p.MaxDelay)
		}
	}
}

func TestPolicyBackoffExponentialCaps(t *testing.T) {
	p := Policy{MinDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}

	for attempt := 1; attempt <= 8; attempt++ {
		d := p.Backoff(attempt)
		if d <= 0 {
			t.Fatalf("backoff should be positive")
		}
		if d > p.MaxDelay {
			t.Fatalf("backoff should cap at max, got %v", d)
		}
	}
	if d := p.Backoff(0); d != 0 {
		t.Fatalf("expected zero backoff before first attempt, got %v", d)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 4, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	var retries []int
	p.OnRetry = func(attempt int, err error, wait time.Duration) { retries = append(retries, attempt) }

	calls := 0
	got, err := Do(context.Background(), p, func(ctx context.Context, attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("expected ok after 3 calls, got %q after %d", got, calls)
	}
	if len(retries) != 2 {
		t.Fatalf("expected 2 retry notifications, got %v", retries)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	sentinel := errors.New("bad request")
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 5, MinDelay: time.Millisecond}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if IsPermanent(err) {
		t.Fatalf("expected permanent marker to be stripped")
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: time.Millisecond}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{MaxAttempts: 5, MinDelay: time.Hour, MaxDelay: time.Hour}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		cancel()
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single call, got %d", calls)
	}
}
