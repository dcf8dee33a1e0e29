package signals

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/linkguard/linkguard/automod/cachestore"
	"github.com/linkguard/linkguard/automod/event"
	"github.com/linkguard/linkguard/automod/helpers"
)

const (
	DefaultCacheTTL      = time.Hour
	DefaultShortCacheTTL = 10 * time.Minute
)

type CacheScope int

const (
	// results depend only on the link's hostname
	ScopeDomain CacheScope = iota
	// results depend on the full URL; keyed by a hash of it
	ScopeURL
)

// Snapshot of a checker result, as stored in the cache
type CacheEntry struct {
	Domain string    `json:"domain"`
	Result Result    `json:"result"`
	Expiry time.Time `json:"expiry"`
}

// Wraps a checker with a read-through cache. Only usable results are cached.
type CachedChecker struct {
	Checker Checker
	Cache   cachestore.CacheStore
	TTL     time.Duration
	Scope   CacheScope
	Logger  *slog.Logger
	Now     func() time.Time
}

var _ Checker = (*CachedChecker)(nil)

// Default cache TTL and key scope for each checker kind
func DefaultCachePolicy(kind Kind) (time.Duration, CacheScope) {
	switch kind {
	case KindAIContent, KindShortener:
		return DefaultShortCacheTTL, ScopeURL
	default:
		return DefaultCacheTTL, ScopeDomain
	}
}

// Wraps checker with a cache using the default policy for its kind; ttl overrides the default TTL if non-zero.
func WithCache(checker Checker, cache cachestore.CacheStore, ttl time.Duration, logger *slog.Logger) *CachedChecker {
	defTTL, scope := DefaultCachePolicy(checker.Kind())
	if ttl <= 0 {
		ttl = defTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedChecker{
		Checker: checker,
		Cache:   cache,
		TTL:     ttl,
		Scope:   scope,
		Logger:  logger,
		Now:     time.Now,
	}
}

func (cc *CachedChecker) Kind() Kind {
	return cc.Checker.Kind()
}

func (cc *CachedChecker) key(le *event.LinkEvent) string {
	if cc.Scope == ScopeURL {
		return helpers.HashOfString(le.URL)
	}
	return le.Domain
}

func (cc *CachedChecker) now() time.Time {
	if cc.Now != nil {
		return cc.Now()
	}
	return time.Now()
}

func (cc *CachedChecker) Check(ctx context.Context, le *event.LinkEvent) Result {
	kind := cc.Kind()
	name := "signal-" + string(kind)
	key := cc.key(le)

	raw, err := cc.Cache.Get(ctx, name, key)
	if err != nil {
		cc.Logger.Warn("signal cache read failed", "kind", kind, "key", key, "err", err)
	} else if raw != "" {
		var entry CacheEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			cc.Logger.Warn("invalid signal cache entry", "kind", kind, "key", key, "err", err)
		} else if cc.now().Before(entry.Expiry) {
			checkerCacheHits.WithLabelValues(string(kind)).Inc()
			res := entry.Result
			res.Cached = true
			return res
		}
	}
	checkerCacheMisses.WithLabelValues(string(kind)).Inc()

	res := cc.Checker.Check(ctx, le)
	if !res.Usable() {
		return res
	}
	entry := CacheEntry{
		Domain: le.Domain,
		Result: res,
		Expiry: cc.now().Add(cc.TTL),
	}
	b, err := json.Marshal(entry)
	if err != nil {
		cc.Logger.Warn("failed to serialize signal cache entry", "kind", kind, "err", err)
		return res
	}
	// use a detached context: the checker's deadline may already be close
	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := cc.Cache.Set(setCtx, name, key, string(b), cc.TTL); err != nil {
		cc.Logger.Warn("signal cache write failed", "kind", kind, "key", key, "err", err)
	}
	return res
}
