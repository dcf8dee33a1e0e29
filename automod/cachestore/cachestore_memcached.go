package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/linkguard/linkguard/automod/helpers"
)

// memcached treats expirations beyond 30 days as absolute unix timestamps
const memcachedMaxTTL = 30*24*time.Hour - time.Minute

// memcached limits keys to 250 bytes
const memcachedMaxKeyLen = 200

type MemcachedCacheStore struct {
	Client *memcache.Client
	MaxTTL time.Duration
}

var _ CacheStore = (*MemcachedCacheStore)(nil)

func NewMemcachedCacheStore(servers []string, maxTTL time.Duration) (*MemcachedCacheStore, error) {
	client := memcache.New(servers...)
	if err := client.Ping(); err != nil {
		return nil, err
	}
	return &MemcachedCacheStore{
		Client: client,
		MaxTTL: clampTTL(maxTTL, memcachedMaxTTL),
	}, nil
}

func memcachedKey(name, key string) string {
	k := "cache/" + name + "/" + key
	if len(k) > memcachedMaxKeyLen {
		k = "cache/" + name + "/h:" + helpers.HashOfString(key)
	}
	return k
}

func (s MemcachedCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	item, err := s.Client.Get(memcachedKey(name, key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(item.Value), nil
}

func (s MemcachedCacheStore) Set(ctx context.Context, name, key string, val string, ttl time.Duration) error {
	ttl = clampTTL(ttl, s.MaxTTL)
	return s.Client.Set(&memcache.Item{
		Key:        memcachedKey(name, key),
		Value:      []byte(val),
		Expiration: int32(ttl.Seconds()),
	})
}
