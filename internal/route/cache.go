package route

import (
	"sync"

	"github.com/roach88/gridroute/internal/transport"
)

// Cache holds bound routes keyed by structural route key, so a layout pair
// that recurs reuses its schedule instead of precomputing again. Every PET
// keeps its own cache; equal keys on different PETs describe matching
// halves of the same transfer. Misses construct routes, so every PET must
// miss on new keys in the same order.
type Cache struct {
	mu     sync.Mutex
	tr     transport.Transport
	opts   []RouteOption
	routes map[string]*Route
	hits   int64
	misses int64
}

// NewCache creates a cache whose routes run over tr.
func NewCache(tr transport.Transport, opts ...RouteOption) *Cache {
	return &Cache{
		tr:     tr,
		opts:   opts,
		routes: make(map[string]*Route),
	}
}

// GetOrBuild returns the route cached under key, or constructs one and
// binds it with bind. A failed bind caches nothing.
func (c *Cache) GetOrBuild(key string, bind func(*Route) error) (*Route, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.routes[key]; ok {
		c.hits++
		return r, nil
	}
	c.misses++
	r := New(c.tr, c.opts...)
	if err := bind(r); err != nil {
		return nil, err
	}
	if r.Key() != key {
		r.logger.Warn("route key differs from cache key", "id", r.ID(), "key", r.Key(), "cache_key", key)
	}
	c.routes[key] = r
	return r, nil
}

// Get returns the route cached under key.
func (c *Cache) Get(key string) (*Route, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.routes[key]
	return r, ok
}

// Evict destroys and removes the route cached under key.
func (c *Cache) Evict(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.routes[key]
	if !ok {
		return false
	}
	delete(c.routes, key)
	_ = r.Destruct()
	return true
}

// Len returns the number of cached routes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.routes)
}

// Counts returns cache hits and misses.
func (c *Cache) Counts() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Close destroys every cached route.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, r := range c.routes {
		_ = r.Destruct()
		delete(c.routes, k)
	}
}
