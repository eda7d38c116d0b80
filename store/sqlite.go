package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

const schema = `
	CREATE TABLE IF NOT EXISTS counters (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT    NOT NULL UNIQUE CHECK (length(name) <= 100),
		value      INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)
`

// SQLiteStore is a persistent Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path and
// initialises the schema. Use ":memory:" for an in-memory SQLite database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tally/store: open sqlite: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("tally/store: create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Begin opens a database transaction at the default isolation level.
func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tally/store: begin: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

// Close closes the underlying SQLite database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) FindByName(ctx context.Context, name string) (*Counter, error) {
	var (
		c                Counter
		created, updated int64
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name, value, created_at, updated_at FROM counters WHERE name = ?`, name,
	).Scan(&c.ID, &c.Name, &c.Value, &created, &updated)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, sqliteErr("find", err)
	}

	c.CreatedAt = time.Unix(0, created).UTC()
	c.UpdatedAt = time.Unix(0, updated).UTC()
	return &c, nil
}

func (t *sqliteTx) Create(ctx context.Context, name string, value int64, at time.Time) (*Counter, error) {
	at = at.UTC()
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO counters (name, value, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, value, at.UnixNano(), at.UnixNano(),
	)
	if err != nil {
		return nil, sqliteErr("create", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, sqliteErr("create", err)
	}

	return &Counter{
		ID:        id,
		Name:      name,
		Value:     value,
		CreatedAt: at,
		UpdatedAt: at,
	}, nil
}

func (t *sqliteTx) Save(ctx context.Context, c *Counter) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE counters SET value = ?, updated_at = ? WHERE id = ?`,
		c.Value, c.UpdatedAt.UTC().UnixNano(), c.ID,
	)
	if err != nil {
		return sqliteErr("save", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return sqliteErr("save", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return sqliteErr("commit", err)
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// sqliteErr maps driver errors onto the package's sentinel errors.
func sqliteErr(op string, err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return ErrTxDone
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) && isUniqueViolation(serr) {
		return fmt.Errorf("tally/store: %s: %w", op, ErrDuplicateName)
	}
	return fmt.Errorf("tally/store: %s: %w", op, err)
}

func isUniqueViolation(err *sqlite.Error) bool {
	switch err.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(err.Error(), "UNIQUE constraint failed")
	}
	return false
}
