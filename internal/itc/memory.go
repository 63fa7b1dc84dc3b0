package itc

import (
	"context"
	"sort"
	"sync"
)

// MemoryCache implements Cache backed by process memory. Intended for tests
// and single-process deployments.
type MemoryCache struct {
	mu      sync.RWMutex
	results map[string]Result
}

// NewMemoryCache returns an in-memory ITC cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{results: make(map[string]Result)}
}

// Driver returns the cache driver identifier.
func (c *MemoryCache) Driver() Driver { return DriverMemory }

// Put stores or replaces the result for its observation.
func (c *MemoryCache) Put(_ context.Context, result Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[result.ObservationID] = result
	return nil
}

// Get returns the cached result for the observation.
func (c *MemoryCache) Get(_ context.Context, observationID string) (Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[observationID]
	if !ok {
		return Result{}, ErrNotCached
	}
	return result, nil
}

// Has reports whether a result is cached for the observation.
func (c *MemoryCache) Has(_ context.Context, observationID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.results[observationID]
	return ok, nil
}

// Delete removes the result, returning true if it existed.
func (c *MemoryCache) Delete(_ context.Context, observationID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.results[observationID]
	delete(c.results, observationID)
	return ok, nil
}

// List returns all cached results ordered by observation id.
func (c *MemoryCache) List(_ context.Context) ([]Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Result, 0, len(c.results))
	for _, r := range c.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservationID < out[j].ObservationID })
	return out, nil
}
