package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketAllowAndRefill(t *testing.T) {
	tb := NewTokenBucket(Config{RequestsPerSec: 5, Burst: 5})

	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Fatalf("expected token available at %d", i)
		}
	}
	if tb.Allow() {
		t.Fatalf("expected no token after burst")
	}

	time.Sleep(250 * time.Millisecond)
	if !tb.Allow() {
		t.Fatalf("expected token after partial refill")
	}
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	tb := NewTokenBucket(Config{RequestsPerSec: 1, Burst: 1})

	if !tb.Allow() {
		t.Fatalf("expected first token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := tb.Wait(ctx); err == nil {
		t.Fatalf("expected timeout")
	}
}

func TestFixedWindow(t *testing.T) {
	fw := NewFixedWindow(Config{RequestsPerSec: 2, Window: 200 * time.Millisecond})
	// 2/s over 200ms rounds down to a single slot.
	if !fw.Allow() {
		t.Fatalf("expected first call to pass")
	}
	if fw.Allow() {
		t.Fatalf("expected second call to be blocked")
	}
	if wait := fw.Reserve(); wait <= 0 || wait > 200*time.Millisecond {
		t.Fatalf("unexpected reserve %v", wait)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := fw.Wait(ctx); err != nil {
		t.Fatalf("expected wait to succeed after window reset: %v", err)
	}
}

func TestFixedWindowWaitRespectsContext(t *testing.T) {
	fw := NewFixedWindow(Config{RequestsPerSec: 1, Window: time.Hour})
	fw.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := fw.Wait(ctx); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestFixedDelaySerializesCallers(t *testing.T) {
	delay := 50 * time.Millisecond
	fd := NewFixedDelay(Config{FixedDelay: delay})

	if !fd.Allow() {
		t.Fatalf("expected first allow")
	}
	wait := fd.Reserve()
	if wait <= 0 || wait < delay/2 {
		t.Fatalf("expected wait close to delay; got %v", wait)
	}

	start := time.Now()
	ctx := context.Background()
	if err := fd.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if err := fd.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < delay+delay/2 {
		t.Fatalf("expected two spaced slots, elapsed %v", elapsed)
	}
}

func TestNewLimiterStrategies(t *testing.T) {
	if _, ok := NewLimiter(Config{Strategy: StrategyFixedDelay}).(*FixedDelay); !ok {
		t.Fatalf("expected fixed delay limiter")
	}
	if _, ok := NewLimiter(Config{Strategy: StrategyFixedWindow}).(*FixedWindow); !ok {
		t.Fatalf("expected fixed window limiter")
	}
	if _, ok := NewLimiter(Config{Strategy: StrategyNone}).(Unlimited); !ok {
		t.Fatalf("expected unlimited limiter")
	}
	if _, ok := NewLimiter(Config{}).(*TokenBucket); !ok {
		t.Fatalf("expected token bucket by default")
	}
}

func TestConfigLoader(t *testing.T) {
	yamlData := []byte(`rate_limits:
  geocoder:
    strategy: fixed_delay
    fixed_delay: 1100ms
    max_retries: 4
    initial_backoff: 2s
    max_backoff: 5s
    jitter: uniform
  media:
    requests_per_second: 3
    burst: 5
`)

	cfgs, err := LoadSourceConfigs(yamlData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	geo, err := cfgs.Get("geocoder")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if geo.FixedDelay != 1100*time.Millisecond {
		t.Fatalf("expected fixed_delay=1.1s, got %v", geo.FixedDelay)
	}
	p := geo.Policy()
	if p.MaxAttempts != 5 || p.Multiplier != 0 || p.MinDelay != 2*time.Second || p.MaxDelay != 5*time.Second {
		t.Fatalf("unexpected policy %+v", p)
	}

	media := cfgs.GetOr("media", Config{})
	if media.RequestsPerSec != 3 || media.Jitter != JitterExponential {
		t.Fatalf("unexpected media config %+v", media)
	}

	if _, err := cfgs.Get("missing"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
	fallback := cfgs.GetOr("missing", Config{FixedDelay: time.Minute})
	if fallback.FixedDelay != time.Minute {
		t.Fatalf("expected fallback config, got %+v", fallback)
	}
}
