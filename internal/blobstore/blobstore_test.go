package blobstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkoziy/habitat/ingest/internal/models"
)

func TestRawPathPartitions(t *testing.T) {
	at := time.Date(2025, time.March, 7, 14, 5, 9, 0, time.UTC)
	if got := RawPath(models.SourceFacebook, "123456", at); got != "facebook/2025/03/123456.json" {
		t.Fatalf("unexpected raw path %q", got)
	}
	if got := RecapturePath(models.SourceCentris, "987", at); got != "centris/2025/03/987.20250307T140509Z.json" {
		t.Fatalf("unexpected recapture path %q", got)
	}
	if got := RawPath(models.SourceMunicipal, "../etc/passwd", at); got != "municipal/2025/03/___etc_passwd.json" {
		t.Fatalf("expected unsafe id to be neutralised, got %q", got)
	}
	if got := MediaPath(models.SourceFacebook, 42, models.MediaImage, 0, "deadbeef", ".jpg"); got != "media/facebook/42/image/01-deadbeef.jpg" {
		t.Fatalf("unexpected media path %q", got)
	}
}

func TestCleanKeyRejectsEscapes(t *testing.T) {
	for _, key := range []string{"", "/abs/path", "../up", ".."} {
		if _, err := CleanKey(key); err == nil {
			t.Errorf("expected %q to be rejected", key)
		}
	}
	if got, err := CleanKey("a//b/./c.json"); err != nil || got != "a/b/c.json" {
		t.Fatalf("unexpected clean result %q, %v", got, err)
	}
}

func testStoreNeverOverwrites(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	res, err := store.Put(ctx, "facebook/2025/03/1.json", []byte(`{"v":1}`), "application/json")
	if err != nil || res != Created {
		t.Fatalf("expected created, got %v, %v", res, err)
	}
	res, err = store.Put(ctx, "facebook/2025/03/1.json", []byte(`{"v":2}`), "application/json")
	if err != nil || res != Exists {
		t.Fatalf("expected exists, got %v, %v", res, err)
	}

	data, err := store.Get(ctx, "facebook/2025/03/1.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"v":1}` {
		t.Fatalf("expected original bytes, got %s", data)
	}

	ok, err := store.Exists(ctx, "facebook/2025/03/1.json")
	if err != nil || !ok {
		t.Fatalf("expected object to exist")
	}

	if _, err := store.Get(ctx, "facebook/2025/03/missing.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFSStoreNeverOverwrites(t *testing.T) {
	store, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("new fs: %v", err)
	}
	testStoreNeverOverwrites(t, store)
}

func TestMemoryStoreNeverOverwrites(t *testing.T) {
	store := NewMemory()
	testStoreNeverOverwrites(t, store)
	if store.Puts() != 1 {
		t.Fatalf("expected a single write, got %d", store.Puts())
	}
}
