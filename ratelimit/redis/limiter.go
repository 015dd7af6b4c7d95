package redislimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limit defines window and max count for a bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter is a Redis-backed sliding window limiter using ZSETs, shared by
// every replica.
type Limiter struct {
	rdb    *redis.Client
	prefix string
	limits map[string]Limit
}

func New(rdb *redis.Client, limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{rdb: rdb, prefix: "memberkit:rl:", limits: limits}
}

func (l *Limiter) limitFor(bucket string) Limit {
	if v, ok := l.limits[bucket]; ok {
		return v
	}
	if v, ok := l.limits["default"]; ok {
		return v
	}
	return Limit{Limit: 100, Window: time.Minute}
}

func (l *Limiter) key(bucket, key string) string {
	return fmt.Sprintf("%s%s:%s", l.prefix, key, bucket)
}

// AllowNamed records an attempt and reports whether it fits the window.
func (l *Limiter) AllowNamed(ctx context.Context, bucket, key string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}
	lim := l.limitFor(bucket)
	now := time.Now().UnixMilli()
	start := now - lim.Window.Milliseconds()
	zkey := l.key(bucket, key)
	member := uuid.NewString()

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, zkey, "0", fmt.Sprintf("%d", start))
	pipe.ZAdd(ctx, zkey, redis.Z{Score: float64(now), Member: member})
	countCmd := pipe.ZCard(ctx, zkey)
	pipe.Expire(ctx, zkey, lim.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	if countCmd.Val() > int64(lim.Limit) {
		l.rdb.ZRem(ctx, zkey, member)
		return false, nil
	}
	return true, nil
}
