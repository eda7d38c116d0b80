package store

import (
	"context"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store implementation.
// It is safe for concurrent use. Counters are lost on process restart.
type MemoryStore struct {
	mu       sync.Mutex
	lastID   int64
	counters map[string]Counter
	names    map[int64]string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]Counter),
		names:    make(map[int64]string),
	}
}

// Begin opens a unit-of-work. Writes are staged on the Tx and applied
// atomically on Commit.
func (m *MemoryStore) Begin(_ context.Context) (Tx, error) {
	return &memoryTx{
		store:   m,
		created: make(map[string]Counter),
		saved:   make(map[int64]Counter),
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) nextID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastID++
	return m.lastID
}

type memoryTx struct {
	store   *MemoryStore
	done    bool
	created map[string]Counter
	saved   map[int64]Counter
}

func (tx *memoryTx) FindByName(_ context.Context, name string) (*Counter, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	if c, ok := tx.created[name]; ok {
		return &c, nil
	}

	tx.store.mu.Lock()
	c, ok := tx.store.counters[name]
	tx.store.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	if staged, ok := tx.saved[c.ID]; ok {
		c.Value = staged.Value
		c.UpdatedAt = staged.UpdatedAt
	}
	return &c, nil
}

func (tx *memoryTx) Create(_ context.Context, name string, value int64, at time.Time) (*Counter, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	if _, ok := tx.created[name]; ok {
		return nil, ErrDuplicateName
	}

	c := Counter{
		ID:        tx.store.nextID(),
		Name:      name,
		Value:     value,
		CreatedAt: at,
		UpdatedAt: at,
	}
	tx.created[name] = c
	return &c, nil
}

func (tx *memoryTx) Save(_ context.Context, c *Counter) error {
	if tx.done {
		return ErrTxDone
	}
	for name, staged := range tx.created {
		if staged.ID == c.ID {
			staged.Value = c.Value
			staged.UpdatedAt = c.UpdatedAt
			tx.created[name] = staged
			return nil
		}
	}
	tx.saved[c.ID] = *c
	return nil
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true

	m := tx.store
	m.mu.Lock()
	defer m.mu.Unlock()

	for name := range tx.created {
		if _, ok := m.counters[name]; ok {
			return ErrDuplicateName
		}
	}
	for id := range tx.saved {
		if _, ok := m.names[id]; !ok {
			return ErrNotFound
		}
	}

	for name, c := range tx.created {
		m.counters[name] = c
		m.names[c.ID] = name
	}
	for id, staged := range tx.saved {
		name := m.names[id]
		c := m.counters[name]
		c.Value = staged.Value
		c.UpdatedAt = staged.UpdatedAt
		m.counters[name] = c
	}
	return nil
}

func (tx *memoryTx) Rollback() error {
	tx.done = true
	return nil
}
