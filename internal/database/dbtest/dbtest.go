// Package dbtest opens migrated throwaway databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/uptrace/bun"

	"github.com/mkoziy/habitat/ingest/internal/database"
	"github.com/mkoziy/habitat/ingest/internal/migrations"
)

// Open returns a migrated SQLite database in a temp dir, closed on cleanup.
func Open(t testing.TB) *bun.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "habitat.db")
	db, err := database.NewDB(dsn, false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.RunMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// WriteCounter counts INSERT, UPDATE and DELETE statements.
type WriteCounter struct {
	writes atomic.Int64
}

// Track installs a WriteCounter on db.
func Track(db *bun.DB) *WriteCounter {
	c := new(WriteCounter)
	db.AddQueryHook(c)
	return c
}

func (c *WriteCounter) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (c *WriteCounter) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	switch event.Operation() {
	case "INSERT", "UPDATE", "DELETE":
		c.writes.Add(1)
	}
}

// Writes returns the number of writes seen so far.
func (c *WriteCounter) Writes() int64 { return c.writes.Load() }

// Reset zeroes the counter.
func (c *WriteCounter) Reset() { c.writes.Store(0) }
