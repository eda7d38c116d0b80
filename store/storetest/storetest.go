// Package storetest provides a behavioural test suite that every
// store.Store implementation is expected to pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ryhazerus/tally/store"
)

// Factory returns a fresh, empty store. The suite closes it when the test
// ends.
type Factory func(t *testing.T) store.Store

var at = time.Date(2024, 1, 15, 14, 30, 0, 123456789, time.UTC)

// Run exercises the store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"FindMissing", testFindMissing},
		{"CreateAndFind", testCreateAndFind},
		{"ReadYourWrites", testReadYourWrites},
		{"Save", testSave},
		{"SaveUnknownID", testSaveUnknownID},
		{"DuplicateName", testDuplicateName},
		{"Rollback", testRollback},
		{"CaseSensitiveNames", testCaseSensitiveNames},
		{"UseAfterCommit", testUseAfterCommit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func begin(t *testing.T, s store.Store) store.Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

func create(t *testing.T, s store.Store, name string, value int64) *store.Counter {
	t.Helper()
	ctx := context.Background()
	tx := begin(t, s)
	c, err := tx.Create(ctx, name, value, at)
	if err != nil {
		t.Fatalf("create %q: %v", name, err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit %q: %v", name, err)
	}
	return c
}

// find reads name in its own unit-of-work and releases it before returning,
// so single-connection stores are not held open.
func find(t *testing.T, s store.Store, name string) *store.Counter {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	c, err := tx.FindByName(ctx, name)
	if err != nil {
		t.Fatalf("find %q: %v", name, err)
	}
	return c
}

func testFindMissing(t *testing.T, s store.Store) {
	tx := begin(t, s)
	_, err := tx.FindByName(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("find missing: got %v, want ErrNotFound", err)
	}
}

func testCreateAndFind(t *testing.T, s store.Store) {
	created := create(t, s, "hits", 7)
	if created.ID == 0 {
		t.Error("created counter has no ID")
	}

	got := find(t, s, "hits")
	if got.ID != created.ID {
		t.Errorf("id = %d, want %d", got.ID, created.ID)
	}
	if got.Name != "hits" || got.Value != 7 {
		t.Errorf("got %q=%d, want hits=7", got.Name, got.Value)
	}
	if !got.CreatedAt.Equal(at) || !got.UpdatedAt.Equal(at) {
		t.Errorf("timestamps = %v/%v, want %v", got.CreatedAt, got.UpdatedAt, at)
	}
}

func testReadYourWrites(t *testing.T, s store.Store) {
	ctx := context.Background()
	tx := begin(t, s)
	if _, err := tx.Create(ctx, "fresh", 1, at); err != nil {
		t.Fatal(err)
	}
	c, err := tx.FindByName(ctx, "fresh")
	if err != nil {
		t.Fatalf("find inside tx: %v", err)
	}
	if c.Value != 1 {
		t.Errorf("value = %d, want 1", c.Value)
	}
}

func testSave(t *testing.T, s store.Store) {
	ctx := context.Background()
	create(t, s, "hits", 1)

	later := at.Add(time.Second)
	tx := begin(t, s)
	c, err := tx.FindByName(ctx, "hits")
	if err != nil {
		t.Fatal(err)
	}
	c.Value = 42
	c.UpdatedAt = later
	if err := tx.Save(ctx, c); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got := find(t, s, "hits")
	if got.Value != 42 {
		t.Errorf("value = %d, want 42", got.Value)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Errorf("updated_at = %v, want %v", got.UpdatedAt, later)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("created_at changed to %v", got.CreatedAt)
	}
}

func testSaveUnknownID(t *testing.T, s store.Store) {
	ctx := context.Background()
	tx := begin(t, s)
	err := tx.Save(ctx, &store.Counter{ID: 9999, Name: "ghost", Value: 1, UpdatedAt: at})
	if err == nil {
		err = tx.Commit()
	}
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("save unknown id: got %v, want ErrNotFound", err)
	}
}

func testDuplicateName(t *testing.T, s store.Store) {
	ctx := context.Background()
	create(t, s, "hits", 1)

	tx := begin(t, s)
	_, err := tx.Create(ctx, "hits", 5, at)
	if err == nil {
		err = tx.Commit()
	}
	if !errors.Is(err, store.ErrDuplicateName) {
		t.Fatalf("duplicate create: got %v, want ErrDuplicateName", err)
	}
	tx.Rollback()

	if got := find(t, s, "hits"); got.Value != 1 {
		t.Errorf("value after rejected duplicate = %d, want 1", got.Value)
	}
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	tx := begin(t, s)
	if _, err := tx.Create(ctx, "discarded", 3, at); err != nil {
		t.Fatal(err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	check := begin(t, s)
	if _, err := check.FindByName(ctx, "discarded"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("after rollback: got %v, want ErrNotFound", err)
	}
}

func testCaseSensitiveNames(t *testing.T, s store.Store) {
	create(t, s, "Hits", 1)
	create(t, s, "hits", 2)
	create(t, s, "HITS", 3)

	for name, want := range map[string]int64{"Hits": 1, "hits": 2, "HITS": 3} {
		if got := find(t, s, name); got.Value != want {
			t.Errorf("%s = %d, want %d", name, got.Value, want)
		}
	}
}

func testUseAfterCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	tx := begin(t, s)
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := tx.FindByName(ctx, "hits"); !errors.Is(err, store.ErrTxDone) {
		t.Errorf("find after commit: got %v, want ErrTxDone", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Errorf("rollback after commit: got %v, want nil", err)
	}
}
