package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/PaulFidika/memberkit/identity"
)

var _ identity.ProfileCache = (*ProfileCache)(nil)

// ProfileCache is an in-memory identity.ProfileCache with TTL.
type ProfileCache struct {
	mu     sync.Mutex
	ttl    time.Duration
	data   map[string]item
	now    func() time.Time
	closed chan struct{}
	once   sync.Once
}

type item struct {
	profileID string
	exp       time.Time
}

// NewProfileCache creates an in-memory profile cache.
// If ttl <= 0, a default of 24 hours is used.
// Starts a background goroutine to clean up expired entries every minute.
func NewProfileCache(ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	c := &ProfileCache{ttl: ttl, data: make(map[string]item), now: time.Now, closed: make(chan struct{})}
	go c.cleanupLoop()
	return c
}

func (s *ProfileCache) Put(ctx context.Context, actorID, profileID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[actorID] = item{profileID: profileID, exp: s.now().Add(s.ttl)}
	return nil
}

func (s *ProfileCache) Get(ctx context.Context, actorID string) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.data[actorID]
	if !ok {
		return "", false, nil
	}
	if s.now().After(it.exp) {
		delete(s.data, actorID)
		return "", false, nil
	}
	return it.profileID, true, nil
}

func (s *ProfileCache) Del(ctx context.Context, actorID string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, actorID)
	return nil
}

func (s *ProfileCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.closed:
			return
		}
	}
}

func (s *ProfileCache) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, v := range s.data {
		if now.After(v.exp) {
			delete(s.data, k)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call twice.
func (s *ProfileCache) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
