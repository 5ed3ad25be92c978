package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/blobstore"
	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/ratelimit"
)

var fastPolicy = ratelimit.Policy{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond, Multiplier: 2}

func TestMaterializeSkipsFailures(t *testing.T) {
	var flaky int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-a"))
		case "/flaky.png":
			if atomic.AddInt32(&flaky, 1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-b"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	store := blobstore.NewMemory()
	m := New(store, Config{}, ratelimit.Unlimited{}, fastPolicy, nil)
	urls := []string{ts.URL + "/a.jpg", ts.URL + "/missing.jpg", "ftp://example/x.jpg", ts.URL + "/flaky.png"}
	paths, warnings := m.Materialize(context.Background(), urls, 42, models.MediaImage, models.SourceCentris)

	if len(paths) != 2 {
		t.Fatalf("expected 2 stored paths, got %v", paths)
	}
	if !strings.HasPrefix(paths[0], "media/centris/42/image/01-") || !strings.HasSuffix(paths[0], ".jpg") {
		t.Fatalf("unexpected first path %q", paths[0])
	}
	if !strings.HasPrefix(paths[1], "media/centris/42/image/02-") || !strings.HasSuffix(paths[1], ".png") {
		t.Fatalf("unexpected second path %q", paths[1])
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", warnings)
	}
	if atomic.LoadInt32(&flaky) != 2 {
		t.Fatalf("expected the flaky url to be retried once")
	}
	data, err := store.Get(context.Background(), paths[0])
	if err != nil || string(data) != "jpeg-a" {
		t.Fatalf("unexpected stored bytes %q %v", data, err)
	}
}

func TestMaterializeIsDeterministic(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("mp4"))
	}))
	defer ts.Close()

	store := blobstore.NewMemory()
	m := New(store, Config{}, nil, fastPolicy, nil)
	first, _ := m.Materialize(context.Background(), []string{ts.URL + "/v"}, 7, models.MediaVideo, models.SourceFacebook)
	second, _ := m.Materialize(context.Background(), []string{ts.URL + "/v"}, 7, models.MediaVideo, models.SourceFacebook)
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Fatalf("expected identical paths, got %v and %v", first, second)
	}
	if store.Puts() != 1 || len(store.Keys()) != 1 {
		t.Fatalf("expected the second put to hit the existing object")
	}
}

func TestMaterializeRespectsSizeLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer ts.Close()

	m := New(blobstore.NewMemory(), Config{MaxBytes: 16}, nil, fastPolicy, nil)
	paths, warnings := m.Materialize(context.Background(), []string{ts.URL + "/big.jpg"}, 1, models.MediaImage, models.SourceFacebook)
	if len(paths) != 0 || len(warnings) != 1 {
		t.Fatalf("expected oversized body rejected, got %v %v", paths, warnings)
	}
}
