package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memEntry struct {
	val     string
	expires time.Time
}

// In-process cache. The LRU evicts anything older than MaxTTL; shorter per-entry TTLs are checked on read.
type MemCacheStore struct {
	Data   *expirable.LRU[string, memEntry]
	MaxTTL time.Duration
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, maxTTL time.Duration) MemCacheStore {
	return MemCacheStore{
		Data:   expirable.NewLRU[string, memEntry](capacity, nil, maxTTL),
		MaxTTL: maxTTL,
	}
}

func (s MemCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	v, ok := s.Data.Get(name + "/" + key)
	if !ok {
		return "", nil
	}
	if time.Now().After(v.expires) {
		s.Data.Remove(name + "/" + key)
		return "", nil
	}
	return v.val, nil
}

func (s MemCacheStore) Set(ctx context.Context, name, key string, val string, ttl time.Duration) error {
	ttl = clampTTL(ttl, s.MaxTTL)
	s.Data.Add(name+"/"+key, memEntry{val: val, expires: time.Now().Add(ttl)})
	return nil
}
