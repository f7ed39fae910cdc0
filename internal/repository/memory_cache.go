package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// MemoryCache is an in-process SubtypeCache, used when Redis is not
// reachable. Entries are local to one instance.
type MemoryCache struct {
	items *cache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{items: cache.New(ttl, 2*ttl)}
}

// Get reports a miss as redis.Nil, like the Redis client does.
func (m *MemoryCache) Get(_ context.Context, key string) *redis.StringCmd {
	if v, ok := m.items.Get(key); ok {
		return redis.NewStringResult(v.(string), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (m *MemoryCache) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.items.Set(key, fmt.Sprint(value), expiration)
	return redis.NewStatusResult("OK", nil)
}
