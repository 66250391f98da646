// Package cache implements a namespaced, byte-budgeted LRU cache with
// per-namespace TTL: a container/list LRU plus an index map that evicts
// the oldest entry on capacity, extended from a single page cache to many
// independently-TTL'd namespaces sharing one byte budget, keyed by a
// canonicalized request fingerprint.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// Stats summarizes cache occupancy and hit/miss counters.
type Stats struct {
	Entries   int
	Bytes     int64
	Hits      int64
	Misses    int64
	Sets      int64
	Evictions int64
}

type entry struct {
	namespace string
	key       string
	value     []byte
	expiresAt time.Time
	size      int64
}

// Cache is a namespaced cache with a global byte budget enforced by LRU
// eviction, and an independent TTL per namespace.
type Cache struct {
	mu         sync.Mutex
	maxBytes   int64
	usedBytes  int64
	lru        *list.List
	index      map[string]*list.Element // namespace\x00key -> element
	namespaces map[string]time.Duration
	defaultTTL time.Duration
	now        func() time.Time
	stats      Stats
}

// New creates a Cache with the given byte budget and default TTL, applied
// to any namespace without an override registered via SetNamespaceTTL.
func New(maxBytes int64, defaultTTL time.Duration) *Cache {
	return &Cache{
		maxBytes:   maxBytes,
		lru:        list.New(),
		index:      make(map[string]*list.Element),
		namespaces: make(map[string]time.Duration),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// SetNamespaceTTL overrides the TTL used for keys stored under namespace.
func (c *Cache) SetNamespaceTTL(namespace string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.namespaces[namespace] = ttl
}

// Fingerprint produces a stable cache key from an arbitrary request value
// by canonicalizing it to JSON and hashing it.
func Fingerprint(request any) (string, error) {
	b, err := json.Marshal(request)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func indexKey(namespace, key string) string { return namespace + "\x00" + key }

// Get returns the cached bytes for (namespace, key) and whether they were
// found and not expired.
func (c *Cache) Get(namespace, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[indexKey(namespace, key)]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if c.now().After(e.expiresAt) {
		c.removeElement(el)
		c.stats.Misses++
		return nil, false
	}
	c.lru.MoveToFront(el)
	c.stats.Hits++
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true
}

// Set stores value under (namespace, key), evicting the least-recently-used
// entries across all namespaces until the byte budget is respected.
func (c *Cache) Set(namespace, key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ttl, ok := c.namespaces[namespace]
	if !ok {
		ttl = c.defaultTTL
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	size := int64(len(stored))
	c.stats.Sets++

	if el, exists := c.index[indexKey(namespace, key)]; exists {
		old := el.Value.(*entry)
		c.usedBytes -= old.size
		old.value = stored
		old.size = size
		old.expiresAt = c.now().Add(ttl)
		c.usedBytes += size
		c.lru.MoveToFront(el)
	} else {
		e := &entry{namespace: namespace, key: key, value: stored, size: size, expiresAt: c.now().Add(ttl)}
		el := c.lru.PushFront(e)
		c.index[indexKey(namespace, key)] = el
		c.usedBytes += size
	}

	for c.maxBytes > 0 && c.usedBytes > c.maxBytes && c.lru.Len() > 0 {
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	c.removeElement(back)
	c.stats.Evictions++
}

func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.index, indexKey(e.namespace, e.key))
	c.lru.Remove(el)
	c.usedBytes -= e.size
}

// Invalidate removes a single (namespace, key) entry, if present.
func (c *Cache) Invalidate(namespace, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[indexKey(namespace, key)]; ok {
		c.removeElement(el)
	}
}

// ClearNamespace removes every entry belonging to namespace.
func (c *Cache) ClearNamespace(namespace string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var toRemove []*list.Element
	for el := c.lru.Front(); el != nil; el = el.Next() {
		if el.Value.(*entry).namespace == namespace {
			toRemove = append(toRemove, el)
		}
	}
	for _, el := range toRemove {
		c.removeElement(el)
	}
}

// ClearAll empties the cache.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Init()
	c.index = make(map[string]*list.Element)
	c.usedBytes = 0
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.lru.Len()
	s.Bytes = c.usedBytes
	return s
}
