package memorylimiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limit defines window and max count for a bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter is an in-memory sliding-window rate limiter for single-replica
// deployments. Buckets are named operations ("session.refresh"); keys are
// actor ids.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	buckets map[string][]time.Time
	now     func() time.Time
}

func New(limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{limits: limits, buckets: make(map[string][]time.Time), now: time.Now}
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

// AllowNamed records an attempt and reports whether it fits the window.
// Denied attempts are not recorded.
func (l *Limiter) AllowNamed(ctx context.Context, bucket, key string) (bool, error) {
	_ = ctx
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}
	lim := l.limitFor(bucket)
	now := l.now()
	cutoff := now.Add(-lim.Window)
	k := key + ":" + bucket

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.buckets[k]
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	ts = ts[i:]
	if len(ts) >= lim.Limit {
		l.buckets[k] = ts
		return false, nil
	}
	l.buckets[k] = append(ts, now)
	return true, nil
}

// Reset forgets every attempt for key in bucket.
func (l *Limiter) Reset(bucket, key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key+":"+bucket)
}
