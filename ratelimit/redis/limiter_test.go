package redislimiter

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_NilClientAllows(t *testing.T) {
	ok, err := New(nil, nil).AllowNamed(context.Background(), "session.refresh", "actor-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_LimitLookup(t *testing.T) {
	l := New(nil, map[string]Limit{"session.refresh": {Limit: 3, Window: time.Minute}})
	assert.Equal(t, 3, l.limitFor("session.refresh").Limit)
	assert.Equal(t, 100, l.limitFor("other").Limit)
	assert.Equal(t, "memberkit:rl:actor-1:session.refresh", l.key("session.refresh", "actor-1"))
}

func TestLimiter_UnreachableRedisErrors(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	ok, err := New(rdb, nil).AllowNamed(context.Background(), "b", "k")
	assert.Error(t, err)
	assert.False(t, ok)
}
