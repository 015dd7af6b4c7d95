// Package refcache caches low-churn public reference data (category lists and
// the like) for a fixed window.
//
// Good results are cached; the degraded path is not. A failed fetch, or one
// that returns no items, serves the static fallback without caching it, so the
// next call goes back to the network.
package refcache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the freshness window when none is configured.
const DefaultTTL = 5 * time.Minute

// Entry is one cached payload.
type Entry struct {
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Store persists cache entries. Implementations live in storage/memory and
// storage/redis; a Store error is treated as a miss, never as a fetch failure.
type Store interface {
	Load(ctx context.Context, key string) (Entry, bool, error)
	Save(ctx context.Context, key string, e Entry, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// FetchFunc loads a fresh value from the network.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Config configures a Cache.
type Config[T any] struct {
	Key      string
	TTL      time.Duration
	Fetch    FetchFunc[T]
	Fallback []T
	Store    Store
	Clock    func() time.Time
	Logger   logrus.FieldLogger
}

// Cache is a single-key TTL cache over a slice payload.
type Cache[T any] struct {
	key      string
	ttl      time.Duration
	fetch    FetchFunc[T]
	fallback []T
	store    Store
	clock    func() time.Time
	log      logrus.FieldLogger
	group    singleflight.Group
}

// New builds a cache. If TTL <= 0, DefaultTTL is used. Without a Store, an
// in-process store is used.
func New[T any](cfg Config[T]) *Cache[T] {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	store := cfg.Store
	if store == nil {
		store = newLocalStore()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	key := cfg.Key
	if key == "" {
		key = "default"
	}
	return &Cache[T]{
		key:      key,
		ttl:      ttl,
		fetch:    cfg.Fetch,
		fallback: cfg.Fallback,
		store:    store,
		clock:    clock,
		log:      log.WithField("refcache", key),
	}
}

// Get returns the cached value while fresh, otherwise fetches. On failure or
// an empty result it returns a copy of the fallback.
func (c *Cache[T]) Get(ctx context.Context) []T {
	if v, ok := c.fresh(ctx); ok {
		return v
	}
	v, err, _ := c.group.Do(c.key, func() (any, error) {
		if v, ok := c.fresh(ctx); ok {
			return v, nil
		}
		return c.refetch(ctx)
	})
	if err != nil {
		return c.fallbackCopy()
	}
	items, _ := v.([]T)
	if len(items) == 0 {
		return c.fallbackCopy()
	}
	return append([]T(nil), items...)
}

// Invalidate drops the cached value so the next Get fetches.
func (c *Cache[T]) Invalidate(ctx context.Context) {
	if err := c.store.Delete(ctx, c.key); err != nil {
		c.log.WithError(err).Warn("refcache: delete failed")
	}
}

func (c *Cache[T]) fresh(ctx context.Context) ([]T, bool) {
	e, ok, err := c.store.Load(ctx, c.key)
	if err != nil {
		c.log.WithError(err).Warn("refcache: store read failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	age := c.clock().Sub(e.FetchedAt)
	if age < 0 || age >= c.ttl {
		return nil, false
	}
	var items []T
	if err := json.Unmarshal(e.Payload, &items); err != nil {
		c.log.WithError(err).Warn("refcache: dropping undecodable entry")
		return nil, false
	}
	if len(items) == 0 {
		return nil, false
	}
	return items, true
}

func (c *Cache[T]) refetch(ctx context.Context) ([]T, error) {
	if c.fetch == nil {
		return nil, nil
	}
	items, err := c.fetch(ctx)
	if err != nil {
		c.log.WithError(err).Warn("refcache: fetch failed, serving fallback")
		return nil, err
	}
	if len(items) == 0 {
		c.log.Warn("refcache: fetch returned no items, serving fallback")
		return nil, nil
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, c.key, Entry{Payload: payload, FetchedAt: c.clock()}, c.ttl); err != nil {
		c.log.WithError(err).Warn("refcache: store write failed")
	}
	return items, nil
}

func (c *Cache[T]) fallbackCopy() []T {
	if c.fallback == nil {
		return nil
	}
	return append([]T(nil), c.fallback...)
}

// localStore keeps entries in process memory.
type localStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func newLocalStore() *localStore {
	return &localStore{entries: make(map[string]Entry)}
}

func (s *localStore) Load(ctx context.Context, key string) (Entry, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *localStore) Save(ctx context.Context, key string, e Entry, ttl time.Duration) error {
	_, _ = ctx, ttl
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = e
	return nil
}

func (s *localStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
