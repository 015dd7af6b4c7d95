package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/PaulFidika/memberkit/identity"
	"github.com/redis/go-redis/v9"
)

var _ identity.ProfileCache = (*ProfileCache)(nil)

// ProfileCache stores the remembered active profile per actor in Redis, so
// every replica serving the actor starts from the same hint.
type ProfileCache struct {
	rdb   *redis.Client
	keyNS string
	ttl   time.Duration
}

func NewProfileCache(rdb *redis.Client, keyPrefix string, ttl time.Duration) *ProfileCache {
	if keyPrefix == "" {
		keyPrefix = "memberkit:profile:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ProfileCache{rdb: rdb, keyNS: keyPrefix, ttl: ttl}
}

func (s *ProfileCache) key(actorID string) string { return s.keyNS + actorID }

func (s *ProfileCache) Put(ctx context.Context, actorID, profileID string) error {
	return s.rdb.Set(ctx, s.key(actorID), profileID, s.ttl).Err()
}

func (s *ProfileCache) Get(ctx context.Context, actorID string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(actorID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *ProfileCache) Del(ctx context.Context, actorID string) error {
	return s.rdb.Del(ctx, s.key(actorID)).Err()
}
