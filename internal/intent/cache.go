package intent

import (
	"container/list"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	anonymousUser  = "anonymous"
	cacheKeyPrefix = 100
)

// Cache keeps recent classification results with TTL expiry and LRU eviction.
// Cached results are returned by pointer, unchanged.
//
// Thread Safety: safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

type cacheEntry struct {
	key       string
	result    *Result
	expiresAt time.Time
}

func NewCache(ttl time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Cache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// CacheKey builds the lookup key: the user id (or "anonymous") followed by
// the first 100 characters of the message.
func CacheKey(userID, message string) string {
	if userID == "" {
		userID = anonymousUser
	}
	return userID + "|" + prefixRunes(message, cacheKeyPrefix)
}

func prefixRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func (c *Cache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		cacheMisses.Inc()
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.now().After(entry.expiresAt) {
		c.removeElement(elem)
		cacheMisses.Inc()
		return nil, false
	}

	c.lru.MoveToFront(elem)
	cacheHits.Inc()
	return entry.result, true
}

func (c *Cache) Set(key string, result *Result) {
	if result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.result = result
		entry.expiresAt = expiresAt
		c.lru.MoveToFront(elem)
		return
	}

	for c.lru.Len() >= c.maxSize {
		c.removeElement(c.lru.Back())
	}

	c.entries[key] = c.lru.PushFront(&cacheEntry{
		key:       key,
		result:    result,
		expiresAt: expiresAt,
	})
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru = list.New()
}

// removeElement must be called with the lock held.
func (c *Cache) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	delete(c.entries, entry.key)
	c.lru.Remove(elem)
}
