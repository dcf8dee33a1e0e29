// Component for caching arbitrary data (as JSON strings) with a per-entry TTL.
//
// Includes an interface and implementations using redis, memcached, and in-process memory.
//
// This is used by the signal checkers to cache results per domain (or per URL), reducing latency and load on external services.
package cachestore
