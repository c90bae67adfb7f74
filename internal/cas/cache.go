package cas

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var bgCtx = context.Background()

const (
	defaultMaxSize = 100 * 1024 * 1024 // 100 MiB
	defaultTTL     = 30 * time.Minute
)

type cacheEntry struct {
	data    []byte
	cid     CID
	size    int
	expires time.Time
}

// Cache is the two-index structure spec.md §4.1 describes: content_hash ->
// (bytes, CID) and CID -> content_hash, bounded by total byte size with
// per-entry TTL. Eviction picks the entry whose expiration is earliest,
// approximating LRU by refreshing TTL on every hit.
type Cache struct {
	mu       sync.Mutex
	maxSize  int
	ttl      time.Duration
	byHash   map[CID]*cacheEntry // content hash -> entry (CID == hash here)
	byCID    map[CID]CID         // CID -> content hash
	curSize  int

	hits   metric.Int64Counter
	misses metric.Int64Counter
	evicts metric.Int64Counter
	size   metric.Int64UpDownCounter
}

// NewCache builds a cache bounded at maxSize bytes with the given per-entry
// TTL. A maxSize or ttl of zero falls back to the spec defaults (100 MiB,
// 30 min).
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	meter := otel.Meter("gotcore")
	hits, _ := meter.Int64Counter("got_cas_cache_hits_total")
	misses, _ := meter.Int64Counter("got_cas_cache_misses_total")
	evicts, _ := meter.Int64Counter("got_cas_cache_evictions_total")
	size, _ := meter.Int64UpDownCounter("got_cas_cache_bytes")
	return &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		byHash:  make(map[CID]*cacheEntry),
		byCID:   make(map[CID]CID),
		hits:    hits,
		misses:  misses,
		evicts:  evicts,
		size:    size,
	}
}

// Get returns the cached bytes for a CID, refreshing its TTL on a hit.
func (c *Cache) Get(id CID) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash, ok := c.byCID[id]
	if !ok {
		c.misses.Add(bgCtx, 1)
		return nil, false
	}
	entry, ok := c.byHash[hash]
	if !ok || time.Now().After(entry.expires) {
		c.misses.Add(bgCtx, 1)
		return nil, false
	}
	entry.expires = time.Now().Add(c.ttl)
	c.hits.Add(bgCtx, 1)
	return entry.data, true
}

// Put inserts data under its content hash, deduplicating identical content:
// if the hash is already cached, only its TTL is refreshed. Evicts by
// earliest expiration until the total size fits within maxSize.
func (c *Cache) Put(id CID, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byHash[id]; ok {
		existing.expires = time.Now().Add(c.ttl)
		return
	}
	entry := &cacheEntry{data: data, cid: id, size: len(data), expires: time.Now().Add(c.ttl)}
	c.byHash[id] = entry
	c.byCID[id] = id
	c.curSize += entry.size
	c.size.Add(bgCtx, int64(entry.size))

	for c.curSize > c.maxSize && len(c.byHash) > 0 {
		c.evictOldestLocked()
	}
}

// evictOldestLocked removes the entry with the earliest expiration. Caller
// must hold c.mu.
func (c *Cache) evictOldestLocked() {
	var oldestHash CID
	var oldestExp time.Time
	first := true
	for hash, entry := range c.byHash {
		if first || entry.expires.Before(oldestExp) {
			oldestHash = hash
			oldestExp = entry.expires
			first = false
		}
	}
	if first {
		return
	}
	entry := c.byHash[oldestHash]
	delete(c.byHash, oldestHash)
	delete(c.byCID, oldestHash)
	c.curSize -= entry.size
	c.size.Add(bgCtx, -int64(entry.size))
	c.evicts.Add(bgCtx, 1)
}

// Len reports the number of live entries, used by tests asserting dedup
// behavior (Scenario E: one entry after two equal puts).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byHash)
}
