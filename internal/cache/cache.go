// Package cache provides in-memory caching for conversion results.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Entry is one cached conversion result.
type Entry struct {
	Name string // output file name
	Body string
	ETag string // upstream ETag the body was produced from
}

// ResultCache caches rendered artifacts keyed by request and upstream ETag.
type ResultCache struct {
	results *expirable.LRU[string, Entry]
}

// NewResultCache creates a new ResultCache holding at most size entries for ttl.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	return &ResultCache{
		results: expirable.NewLRU[string, Entry](size, nil, ttl),
	}
}

// Get retrieves a cached result if it was stored for the same ETag and has not expired.
func (c *ResultCache) Get(key, etag string) (Entry, bool) {
	entry, ok := c.results.Get(key)
	if !ok || entry.ETag != etag {
		return Entry{}, false
	}
	return entry, true
}

// Set stores a result in the cache
func (c *ResultCache) Set(key string, entry Entry) {
	c.results.Add(key, entry)
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	return c.results.Len()
}

// Purge drops every cached result.
func (c *ResultCache) Purge() {
	c.results.Purge()
}
