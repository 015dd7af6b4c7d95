package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/PaulFidika/memberkit/refcache"
)

var _ refcache.Store = (*RefStore)(nil)

// RefStore keeps reference-data cache entries in process memory. Entries
// outlive their freshness window until overwritten; refcache decides
// freshness from FetchedAt.
type RefStore struct {
	mu   sync.RWMutex
	data map[string]refcache.Entry
}

func NewRefStore() *RefStore {
	return &RefStore{data: make(map[string]refcache.Entry)}
}

func (s *RefStore) Load(ctx context.Context, key string) (refcache.Entry, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[key]
	return e, ok, nil
}

func (s *RefStore) Save(ctx context.Context, key string, e refcache.Entry, ttl time.Duration) error {
	_, _ = ctx, ttl
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = refcache.Entry{Payload: append([]byte(nil), e.Payload...), FetchedAt: e.FetchedAt}
	return nil
}

func (s *RefStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
