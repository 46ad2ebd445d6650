package rules

import (
	"sync"
	"time"
)

type cacheEntry struct {
	lastModified time.Time
	cfg          Config
}

// Cache holds parsed configs keyed by (owner, source last-modified).
// An entry is replaced only when the incoming last-modified is strictly
// newer than the cached one.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache constructs an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Lookup returns the cached config for owner when it is at least as new as
// lastModified.
func (c *Cache) Lookup(ownerID string, lastModified time.Time) (Config, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ownerID]
	if !ok || lastModified.After(e.lastModified) {
		return Config{}, false
	}
	return e.cfg.Clone(), true
}

// Store records cfg for owner at lastModified and reports whether the entry
// was written.
func (c *Cache) Store(ownerID string, lastModified time.Time, cfg Config) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[ownerID]; ok && !lastModified.After(e.lastModified) {
		return false
	}
	c.entries[ownerID] = cacheEntry{lastModified: lastModified, cfg: cfg.Clone()}
	return true
}

// Len returns the number of cached owners.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
