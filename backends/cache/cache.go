// Package cache is a process-local k/v store used to keep hot, cheap-to-lose
// data (category listings, recently seen import summaries) out of postgres
// and redis.
package cache

import (
	"time"

	gcache "github.com/patrickmn/go-cache"
)

const (
	CategoriesKey = "categories"
	ImportPrefix  = "import"

	DefaultCleanupInterval = time.Minute
)

type ICache interface {
	Add(key string, value interface{}, exp ...time.Duration) error
	Set(key string, value interface{}, exp ...time.Duration)
	Get(key string) (value interface{}, ok bool)
	Contains(key string) (exists bool)
	Remove(key string) bool
}

type Cache struct {
	*gcache.Cache
}

func New() (*Cache, error) {
	return &Cache{
		Cache: gcache.New(gcache.NoExpiration, DefaultCleanupInterval),
	}, nil
}

// Add will error if adding a key that already exists in cache; accepts an
// optional expiration time.
func (c *Cache) Add(key string, value interface{}, exp ...time.Duration) error {
	return c.Cache.Add(key, value, expiration(exp))
}

// Set will add OR overwrite an element in the cache; accepts an optional
// expiration time.
func (c *Cache) Set(key string, value interface{}, exp ...time.Duration) {
	c.Cache.Set(key, value, expiration(exp))
}

func (c *Cache) Get(key string) (interface{}, bool) {
	return c.Cache.Get(key)
}

func (c *Cache) Contains(key string) bool {
	_, ok := c.Cache.Get(key)
	return ok
}

// Remove deletes key and reports whether it was present.
func (c *Cache) Remove(key string) bool {
	if !c.Contains(key) {
		return false
	}

	c.Cache.Delete(key)

	return true
}

func expiration(exp []time.Duration) time.Duration {
	if len(exp) > 0 {
		return exp[0]
	}

	return gcache.NoExpiration
}
