package storage

import (
	"container/list"
	"sync"
	"time"
)

// cacheItem represents an item in the cache
type cacheItem struct {
	key       string
	value     interface{}
	timestamp time.Time
	element   *list.Element
}

// MemoryCache implements an LRU cache with TTL support. Its main duty
// here is holding raw SERP payloads: live lookups are billed per
// request, so a replay inside the TTL window is real money saved.
type MemoryCache struct {
	maxSize int
	items   map[string]*cacheItem
	lruList *list.List
	mu      sync.RWMutex
	ttl     time.Duration

	hits   uint64
	misses uint64
}

// NewMemoryCache creates a new in-memory cache with specified size
func NewMemoryCache(maxSize int) *MemoryCache {
	return NewMemoryCacheWithTTL(maxSize, 0) // No TTL by default
}

// NewMemoryCacheWithTTL creates a new in-memory cache with TTL
func NewMemoryCacheWithTTL(maxSize int, ttl time.Duration) *MemoryCache {
	cache := &MemoryCache{
		maxSize: maxSize,
		items:   make(map[string]*cacheItem),
		lruList: list.New(),
		ttl:     ttl,
	}

	if ttl > 0 {
		go cache.cleanupRoutine()
	}

	return cache
}

// Set adds or updates an item in the cache
func (mc *MemoryCache) Set(key string, value interface{}) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now()

	if item, exists := mc.items[key]; exists {
		item.value = value
		item.timestamp = now
		mc.lruList.MoveToFront(item.element)
		return nil
	}

	item := &cacheItem{
		key:       key,
		value:     value,
		timestamp: now,
	}

	element := mc.lruList.PushFront(item)
	item.element = element
	mc.items[key] = item

	if len(mc.items) > mc.maxSize {
		mc.evictOldest()
	}

	return nil
}

// Get retrieves an item from the cache
func (mc *MemoryCache) Get(key string) (interface{}, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	item, exists := mc.items[key]
	if !exists {
		mc.misses++
		return nil, false
	}

	// Expired entries are deleted on read; the cleanup routine catches
	// the ones nobody asks for.
	if mc.ttl > 0 && time.Since(item.timestamp) > mc.ttl {
		mc.deleteItem(item)
		mc.misses++
		return nil, false
	}

	mc.lruList.MoveToFront(item.element)
	mc.hits++

	return item.value, true
}

// Delete removes an item from the cache
func (mc *MemoryCache) Delete(key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if item, exists := mc.items[key]; exists {
		mc.deleteItem(item)
	}

	return nil
}

// Clear removes all items from the cache
func (mc *MemoryCache) Clear() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.items = make(map[string]*cacheItem)
	mc.lruList = list.New()

	return nil
}

// Size returns the current number of items in the cache
func (mc *MemoryCache) Size() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.items)
}

// Stats returns cache statistics
func (mc *MemoryCache) Stats() CacheStats {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return CacheStats{
		Size:    len(mc.items),
		MaxSize: mc.maxSize,
		TTL:     mc.ttl,
		Hits:    mc.hits,
		Misses:  mc.misses,
	}
}

// evictOldest removes the least recently used item
func (mc *MemoryCache) evictOldest() {
	element := mc.lruList.Back()
	if element != nil {
		item := element.Value.(*cacheItem)
		mc.deleteItem(item)
	}
}

// deleteItem removes an item from both map and list
func (mc *MemoryCache) deleteItem(item *cacheItem) {
	delete(mc.items, item.key)
	mc.lruList.Remove(item.element)
}

// cleanupRoutine periodically removes expired items
func (mc *MemoryCache) cleanupRoutine() {
	ticker := time.NewTicker(mc.ttl / 2)
	defer ticker.Stop()

	for range ticker.C {
		mc.cleanupExpired()
	}
}

// cleanupExpired removes all expired items
func (mc *MemoryCache) cleanupExpired() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.ttl == 0 {
		return
	}

	now := time.Now()
	var expiredItems []*cacheItem

	for _, item := range mc.items {
		if now.Sub(item.timestamp) > mc.ttl {
			expiredItems = append(expiredItems, item)
		}
	}

	for _, item := range expiredItems {
		mc.deleteItem(item)
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int           `json:"size"`
	MaxSize int           `json:"max_size"`
	TTL     time.Duration `json:"ttl"`
	Hits    uint64        `json:"hits"`
	Misses  uint64        `json:"misses"`
}

// ResponseCache adapts MemoryCache to the byte-payload interface the
// SERP client caches raw responses behind.
type ResponseCache struct {
	cache *MemoryCache
}

// NewResponseCache creates a payload cache sized and aged for live SERP
// responses.
func NewResponseCache(maxSize int, ttl time.Duration) *ResponseCache {
	return &ResponseCache{cache: NewMemoryCacheWithTTL(maxSize, ttl)}
}

// Get returns the cached payload for the query hash, if fresh.
func (rc *ResponseCache) Get(key string) ([]byte, bool) {
	v, ok := rc.cache.Get(key)
	if !ok {
		return nil, false
	}
	payload, ok := v.([]byte)
	return payload, ok
}

// Set stores a raw payload under the query hash.
func (rc *ResponseCache) Set(key string, payload []byte) {
	rc.cache.Set(key, payload)
}

// Stats exposes the underlying cache counters.
func (rc *ResponseCache) Stats() CacheStats {
	return rc.cache.Stats()
}
