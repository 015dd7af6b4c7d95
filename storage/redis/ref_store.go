package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/PaulFidika/memberkit/refcache"
	"github.com/redis/go-redis/v9"
)

var _ refcache.Store = (*RefStore)(nil)

// RefStore shares reference-data cache entries across replicas.
type RefStore struct {
	rdb   *redis.Client
	keyNS string
}

func NewRefStore(rdb *redis.Client, keyPrefix string) *RefStore {
	if keyPrefix == "" {
		keyPrefix = "memberkit:ref:"
	}
	return &RefStore{rdb: rdb, keyNS: keyPrefix}
}

func (s *RefStore) key(k string) string { return s.keyNS + k }

func (s *RefStore) Load(ctx context.Context, key string) (refcache.Entry, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return refcache.Entry{}, false, nil
	}
	if err != nil {
		return refcache.Entry{}, false, err
	}
	var e refcache.Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return refcache.Entry{}, false, err
	}
	return e, true, nil
}

// Save keeps the entry for ttl; refcache still checks FetchedAt.
func (s *RefStore) Save(ctx context.Context, key string, e refcache.Entry, ttl time.Duration) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(key), b, ttl).Err()
}

func (s *RefStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}
