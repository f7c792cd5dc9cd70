package normalize

import "sync"

// AliasCache is a process-scoped, append-only cache of resolved alias sets
// keyed by normalized skill name. It is purely an optimization: losing it only
// costs recomputation, because persisted aliases remain the source of truth.
// Construct a fresh instance per test case rather than sharing a global.
type AliasCache struct {
	mu      sync.RWMutex
	entries map[string][]string
}

// NewAliasCache creates an empty alias cache
func NewAliasCache() *AliasCache {
	return &AliasCache{entries: make(map[string][]string)}
}

// Get returns a copy of the cached alias set for a normalized name
func (c *AliasCache) Get(key string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	aliases, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	out := make([]string, len(aliases))
	copy(out, aliases)
	return out, true
}

// Put stores an alias set under a normalized name
func (c *AliasCache) Put(key string, aliases []string) {
	stored := make([]string, len(aliases))
	copy(stored, aliases)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = stored
}

// Len returns the number of cached entries
func (c *AliasCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
