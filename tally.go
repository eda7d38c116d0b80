package tally

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/juju/clock"
	"github.com/ryhazerus/tally/store"
	"go.uber.org/zap"
)

// ErrInvalidName is returned when a counter name cannot be stored.
var ErrInvalidName = errors.New("tally: invalid counter name")

// Service is the main entry point for the tally library. It reads and
// mutates named counters, one unit-of-work per call.
type Service struct {
	store   store.Store
	logger  *zap.Logger
	clock   clock.Clock
	metrics *metrics
}

// New creates a new Service with the given options.
// If no store is provided, an in-memory store is used.
func New(opts ...Option) *Service {
	s := &Service{}
	for _, o := range opts {
		o(s)
	}
	if s.store == nil {
		s.store = store.NewMemoryStore()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = clock.WallClock
	}
	return s
}

// GetOrCreate returns the counter with the given name, creating it with
// value 0 if it does not exist yet.
func (s *Service) GetOrCreate(ctx context.Context, name string) (store.Counter, error) {
	return s.do(ctx, "get", name, func(tx store.Tx, c *store.Counter) (*store.Counter, error) {
		if c != nil {
			return c, nil
		}
		return tx.Create(ctx, name, 0, s.now())
	})
}

// Value returns the current value of the named counter. Like GetOrCreate,
// it creates the counter on first use, so a read may cause a write.
func (s *Service) Value(ctx context.Context, name string) (int64, error) {
	c, err := s.GetOrCreate(ctx, name)
	if err != nil {
		return 0, err
	}
	return c.Value, nil
}

// Increment adds one to the named counter and returns the new value.
// A counter that does not exist yet is created with value 1.
func (s *Service) Increment(ctx context.Context, name string) (int64, error) {
	c, err := s.do(ctx, "increment", name, func(tx store.Tx, c *store.Counter) (*store.Counter, error) {
		if c == nil {
			return tx.Create(ctx, name, 1, s.now())
		}
		c.Value++
		return c, s.touch(ctx, tx, c)
	})
	if err != nil {
		return 0, err
	}
	return c.Value, nil
}

// Reset sets the named counter to 0 and returns the new value.
// A counter that does not exist yet is created with value 0.
func (s *Service) Reset(ctx context.Context, name string) (int64, error) {
	c, err := s.do(ctx, "reset", name, func(tx store.Tx, c *store.Counter) (*store.Counter, error) {
		if c == nil {
			return tx.Create(ctx, name, 0, s.now())
		}
		c.Value = 0
		return c, s.touch(ctx, tx, c)
	})
	if err != nil {
		return 0, err
	}
	return c.Value, nil
}

// Close releases resources held by the service's store.
func (s *Service) Close() error {
	return s.store.Close()
}

// do runs fn inside one unit-of-work. fn receives the existing counter, or
// nil when name is unknown, and returns the counter to report. The
// unit-of-work is committed when fn succeeds and rolled back otherwise.
func (s *Service) do(ctx context.Context, op, name string,
	fn func(tx store.Tx, c *store.Counter) (*store.Counter, error),
) (store.Counter, error) {
	if utf8.RuneCountInString(name) > store.MaxNameLength {
		s.metrics.observe(op, ErrInvalidName, 0)
		return store.Counter{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidName, store.MaxNameLength)
	}

	start := time.Now()
	c, err := s.run(ctx, name, fn)
	s.metrics.observe(op, err, time.Since(start))

	if err != nil {
		s.logger.Error("counter operation failed",
			zap.String("op", op),
			zap.String("name", name),
			zap.Error(err),
		)
		return store.Counter{}, fmt.Errorf("tally: %s %q: %w", op, name, err)
	}

	s.logger.Debug("counter operation",
		zap.String("op", op),
		zap.String("name", name),
		zap.Int64("value", c.Value),
	)
	return *c, nil
}

func (s *Service) run(ctx context.Context, name string,
	fn func(tx store.Tx, c *store.Counter) (*store.Counter, error),
) (*store.Counter, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	existing, err := tx.FindByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		existing, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	c, err := fn(tx, existing)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

// touch refreshes UpdatedAt and saves c. UpdatedAt never moves backwards.
func (s *Service) touch(ctx context.Context, tx store.Tx, c *store.Counter) error {
	if now := s.now(); now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
	return tx.Save(ctx, c)
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}
