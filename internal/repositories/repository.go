package repositories

import (
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrLeaseHeld is returned when another live run owns the transform lease.
	ErrLeaseHeld = errors.New("transform already in progress")
	// ErrAlreadyTransformed is returned when an unforced attempt finds the item
	// already completed by another run.
	ErrAlreadyTransformed = errors.New("already transformed")
	// ErrLeaseLost is returned when a run advances an item it no longer owns.
	ErrLeaseLost = errors.New("transform lease lost")
)

// Repository is the relational store of the pipeline.
type Repository struct {
	db  *bun.DB
	now func() time.Time
}

// New wraps a bun database.
func New(db *bun.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// DB exposes the underlying handle.
func (r *Repository) DB() *bun.DB { return r.db }

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

func idPtr(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func bunIdent(name string) bun.Ident {
	return bun.Ident(name)
}
