// Package memcache is the default Cacher: an in-process TTL cache backed
// by patrickmn/go-cache.
package memcache

import (
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache implements cache.Cacher.
type Cache struct {
	inner *gocache.Cache
}

// New returns a Cache with defaultTTL applied to Set calls that don't
// specify their own ttl, and cleanupInterval controlling how often
// expired entries are purged.
func New(defaultTTL, cleanupInterval time.Duration) *Cache {
	return &Cache{inner: gocache.New(defaultTTL, cleanupInterval)}
}

func (c *Cache) Get(key string) (interface{}, bool) {
	return c.inner.Get(key)
}

func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.inner.Set(key, value, ttl)
}

func (c *Cache) Del(key string) {
	c.inner.Delete(key)
}

// Clean removes every key matching pattern, a filepath-style glob over
// the cache's keys (fingerprints are colon-joined, e.g. "math.add:*").
func (c *Cache) Clean(pattern string) error {
	for key := range c.inner.Items() {
		matched, err := filepath.Match(pattern, key)
		if err != nil {
			return err
		}
		if matched {
			c.inner.Delete(key)
		}
	}
	return nil
}
