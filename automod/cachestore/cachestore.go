package cachestore

import (
	"context"
	"time"
)

// A missing (or expired) key is not an error: Get returns an empty string.
type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string, ttl time.Duration) error
}

// clamps a TTL to the range memcached (and sane callers) accept
func clampTTL(ttl, max time.Duration) time.Duration {
	if ttl <= 0 || ttl > max {
		return max
	}
	return ttl
}
