package geo

import (
	"strings"
	"sync"

	"taxi/internal/domain"
)

// Cache stores resolved coordinates by normalized address key.
type Cache interface {
	Get(key string) (domain.Coordinates, bool)
	Set(key string, coords domain.Coordinates)
}

// NormalizeAddress builds the cache key for an address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// MemoryCache is a process-lifetime Cache. Entries are never evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]domain.Coordinates
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]domain.Coordinates)}
}

func (c *MemoryCache) Get(key string) (domain.Coordinates, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coords, ok := c.entries[key]
	return coords, ok
}

func (c *MemoryCache) Set(key string, coords domain.Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = coords
}

// Len returns the number of cached addresses.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
