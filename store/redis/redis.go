// Package redis provides a store.Store backed by Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ryhazerus/tally/store"
)

// Compile-time interface check.
var _ store.Store = (*RedisStore)(nil)

const (
	keyPrefix = "tally:counter:"
	seqKey    = "tally:seq"
	idsKey    = "tally:ids"
)

// RedisStore is a Store backed by Redis. Each counter is stored as a Redis
// hash with fields "id", "value", "created_at" and "updated_at". IDs come
// from an INCR sequence and are indexed in a separate hash so Save can
// address a counter by ID.
//
// A unit-of-work reads directly from Redis and stages its writes. Commit
// applies them in a single MULTI/EXEC guarded by WATCH on every touched key.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Begin opens a unit-of-work. ctx is used for every command the Tx issues,
// including those run by Commit.
func (r *RedisStore) Begin(ctx context.Context) (store.Tx, error) {
	return &redisTx{
		ctx:     ctx,
		client:  r.client,
		created: make(map[string]store.Counter),
		saved:   make(map[int64]store.Counter),
	}, nil
}

// Close closes the underlying Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

type redisTx struct {
	ctx     context.Context
	client  *redis.Client
	done    bool
	created map[string]store.Counter
	saved   map[int64]store.Counter
}

func (t *redisTx) FindByName(ctx context.Context, name string) (*store.Counter, error) {
	if t.done {
		return nil, store.ErrTxDone
	}
	if c, ok := t.created[name]; ok {
		return &c, nil
	}

	vals, err := t.client.HGetAll(ctx, redisKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("tally/store/redis: find: %w", err)
	}
	if len(vals) == 0 {
		return nil, store.ErrNotFound
	}

	c, err := decode(name, vals)
	if err != nil {
		return nil, err
	}
	if staged, ok := t.saved[c.ID]; ok {
		c.Value = staged.Value
		c.UpdatedAt = staged.UpdatedAt
	}
	return c, nil
}

func (t *redisTx) Create(ctx context.Context, name string, value int64, at time.Time) (*store.Counter, error) {
	if t.done {
		return nil, store.ErrTxDone
	}
	if len([]rune(name)) > store.MaxNameLength {
		return nil, fmt.Errorf("tally/store/redis: create: name longer than %d characters", store.MaxNameLength)
	}
	if _, ok := t.created[name]; ok {
		return nil, store.ErrDuplicateName
	}

	id, err := t.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("tally/store/redis: next id: %w", err)
	}

	at = at.UTC()
	c := store.Counter{
		ID:        id,
		Name:      name,
		Value:     value,
		CreatedAt: at,
		UpdatedAt: at,
	}
	t.created[name] = c
	return &c, nil
}

func (t *redisTx) Save(_ context.Context, c *store.Counter) error {
	if t.done {
		return store.ErrTxDone
	}
	for name, staged := range t.created {
		if staged.ID == c.ID {
			staged.Value = c.Value
			staged.UpdatedAt = c.UpdatedAt.UTC()
			t.created[name] = staged
			return nil
		}
	}
	t.saved[c.ID] = *c
	return nil
}

func (t *redisTx) Commit() error {
	if t.done {
		return store.ErrTxDone
	}
	t.done = true

	if len(t.created) == 0 && len(t.saved) == 0 {
		return nil
	}

	// The id index is written once per counter and never changes, so it is
	// read outside the watch.
	savedNames := make(map[int64]string, len(t.saved))
	for id := range t.saved {
		name, err := t.client.HGet(t.ctx, idsKey, strconv.FormatInt(id, 10)).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("tally/store/redis: commit: %w", store.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("tally/store/redis: commit: %w", err)
		}
		savedNames[id] = name
	}

	keys := make([]string, 0, len(t.created)+len(savedNames))
	for name := range t.created {
		keys = append(keys, redisKey(name))
	}
	for _, name := range savedNames {
		keys = append(keys, redisKey(name))
	}

	err := t.client.Watch(t.ctx, func(tx *redis.Tx) error {
		return t.apply(tx, savedNames)
	}, keys...)

	if err != nil {
		return fmt.Errorf("tally/store/redis: commit: %w", err)
	}
	return nil
}

// apply validates the staged creates against the watched keys and queues
// every write in one MULTI/EXEC. Only the touched counter keys are watched,
// so units-of-work on other counters never conflict.
func (t *redisTx) apply(tx *redis.Tx, savedNames map[int64]string) error {
	ctx := t.ctx

	for name := range t.created {
		n, err := tx.Exists(ctx, redisKey(name)).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return store.ErrDuplicateName
		}
	}

	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for name, c := range t.created {
			pipe.HSet(ctx, redisKey(name),
				"id", c.ID,
				"value", c.Value,
				"created_at", c.CreatedAt.UnixNano(),
				"updated_at", c.UpdatedAt.UnixNano(),
			)
			pipe.HSet(ctx, idsKey, strconv.FormatInt(c.ID, 10), name)
		}
		for id, c := range t.saved {
			pipe.HSet(ctx, redisKey(savedNames[id]),
				"value", c.Value,
				"updated_at", c.UpdatedAt.UTC().UnixNano(),
			)
		}
		return nil
	})
	return err
}

func (t *redisTx) Rollback() error {
	t.done = true
	return nil
}

func decode(name string, vals map[string]string) (*store.Counter, error) {
	var nums [4]int64
	for i, field := range []string{"id", "value", "created_at", "updated_at"} {
		n, err := strconv.ParseInt(vals[field], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("tally/store/redis: parse %s: %w", field, err)
		}
		nums[i] = n
	}

	return &store.Counter{
		ID:        nums[0],
		Name:      name,
		Value:     nums[1],
		CreatedAt: time.Unix(0, nums[2]).UTC(),
		UpdatedAt: time.Unix(0, nums[3]).UTC(),
	}, nil
}

func redisKey(name string) string {
	return keyPrefix + name
}
