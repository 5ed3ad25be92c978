package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/ratelimit"
)

var fastPolicy = ratelimit.Policy{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(ts.Close)
	c := New(Config{BaseURL: ts.URL}, ratelimit.Unlimited{}, fastPolicy, nil)
	return c, &calls
}

func TestVariants(t *testing.T) {
	c := New(Config{}, nil, fastPolicy, nil)
	got := c.Variants("4200 rue Fabre", "Montréal", "h2j3t6")
	want := []string{"4200 rue Fabre, Montréal, H2J 3T6", "4200 rue Fabre, Montréal", "H2J 3T6"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("variant %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if got := c.Variants("4200 rue Fabre", "", ""); len(got) != 1 {
		t.Fatalf("expected duplicates dropped, got %v", got)
	}
}

func TestGeocodeFirstHitWins(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("format") != "jsonv2" || r.URL.Query().Get("limit") != "1" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if r.URL.Query().Get("q") == "4200 rue Fabre, Montréal" {
			_, _ = w.Write([]byte(`[{"lat": "45.5391", "lon": "-73.5812"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	coords, err := c.Geocode(context.Background(), "4200 rue Fabre", "Montréal", "H2J 3T6")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if coords == nil || coords.Lat != 45.5391 || coords.Lng != -73.5812 {
		t.Fatalf("unexpected coordinates %+v", coords)
	}
	if n := atomic.LoadInt32(calls); n != 2 {
		t.Fatalf("expected 2 provider calls, got %d", n)
	}
}

func TestGeocodeRetriesTransientFailures(t *testing.T) {
	var n int32
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&n, 1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`[{"lat": "45.5", "lon": "-73.6"}]`))
		}
	})
	coords, err := c.Geocode(context.Background(), "4200 rue Fabre", "", "")
	if err != nil || coords == nil {
		t.Fatalf("expected success after retries, got %v %v", coords, err)
	}
	if got := atomic.LoadInt32(calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestGeocodeGivesUpAfterRetries(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	coords, err := c.Geocode(context.Background(), "4200 rue Fabre", "", "")
	if err == nil || coords != nil {
		t.Fatalf("expected an error after exhausting retries")
	}
	if got := atomic.LoadInt32(calls); got != int32(fastPolicy.MaxAttempts) {
		t.Fatalf("expected %d calls, got %d", fastPolicy.MaxAttempts, got)
	}
}

func TestGeocodeClientErrorIsNotRetried(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	if _, err := c.Geocode(context.Background(), "4200 rue Fabre", "", ""); err == nil {
		t.Fatalf("expected an error")
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("expected a single call, got %d", got)
	}
}

func TestGeocodeMalformedInputSkipsProvider(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	for _, address := range []string{"", "  ", "12"} {
		coords, err := c.Geocode(context.Background(), address, "Montréal", "H2J 3T6")
		if err != nil || coords != nil {
			t.Fatalf("expected nil result for %q, got %v %v", address, coords, err)
		}
	}
	if got := atomic.LoadInt32(calls); got != 0 {
		t.Fatalf("expected no provider calls, got %d", got)
	}
}
