package store

import (
	"context"
	"errors"
	"time"
)

// MaxNameLength is the longest counter name, in characters, a store accepts.
const MaxNameLength = 100

var (
	// ErrNotFound is returned by Tx.FindByName when no counter has the name.
	ErrNotFound = errors.New("tally/store: counter not found")

	// ErrDuplicateName is returned when a create collides with an existing name.
	ErrDuplicateName = errors.New("tally/store: duplicate counter name")

	// ErrTxDone is returned when a committed or rolled back Tx is used.
	ErrTxDone = errors.New("tally/store: transaction already finished")
)

// Counter is a named, persisted integer.
type Counter struct {
	ID        int64
	Name      string
	Value     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store defines the interface for counter persistence backends.
type Store interface {
	// Begin opens a unit-of-work. The caller must finish it with Commit or
	// Rollback.
	Begin(ctx context.Context) (Tx, error)

	// Close releases any resources held by the store.
	Close() error
}

// Tx is a single unit-of-work against a Store. Writes become visible to
// other units-of-work only after Commit.
type Tx interface {
	// FindByName returns the counter with exactly this name, or ErrNotFound.
	FindByName(ctx context.Context, name string) (*Counter, error)

	// Create inserts a counter with the given value. Both timestamps are set
	// to at. The returned counter carries the store-assigned ID.
	Create(ctx context.Context, name string, value int64, at time.Time) (*Counter, error)

	// Save writes Value and UpdatedAt of the counter identified by c.ID.
	Save(ctx context.Context, c *Counter) error

	// Commit makes the unit-of-work's writes durable.
	Commit() error

	// Rollback discards the unit-of-work. It is a no-op after Commit.
	Rollback() error
}
