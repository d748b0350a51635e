package web

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	body    []byte
	fetched time.Time
}

// ttlCache keeps rendered responses for a fixed window. Concurrent misses
// on one key share a single fill; failed fills are not cached.
type ttlCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{entries: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

func (c *ttlCache) get(key string, fill func() ([]byte, error)) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.fetched) < c.ttl {
		return e.body, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		body, err := fill()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = cacheEntry{body: body, fetched: c.now()}
		c.mu.Unlock()
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// invalidate drops every entry.
func (c *ttlCache) invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// purge drops expired entries.
func (c *ttlCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if c.now().Sub(e.fetched) >= c.ttl {
			delete(c.entries, k)
		}
	}
}
