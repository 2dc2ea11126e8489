// internal/cache/cache.go
package cache

import (
	"log"
	"sync"
	"time"

	"clinica-cloud/internal/metrics"
	"clinica-cloud/internal/model"
)

// entry pairs a handle with the bookkeeping the reaper needs. Internal to
// the cache; callers only ever see the handle.
type entry struct {
	handle   *model.ConnectionHandle
	lastUsed time.Time
}

// ConnectionCache holds live tenant store handles keyed by tenant key
// (subdomain). At most one handle exists per tenant. The cache owns every
// handle it holds and closes isolated handles on eviction.
//
// A single mutex guards all state: Get writes lastUsed, so it takes the
// same lock as the mutating operations. Stats copies under the lock and
// therefore always observes a consistent snapshot.
type ConnectionCache struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *ConnectionCache {
	return &ConnectionCache{
		entries: make(map[string]*entry),
	}
}

// Get returns the cached handle for a tenant key, refreshing its
// last-activity timestamp, or nil on miss.
func (c *ConnectionCache) Get(tenantKey string) *model.ConnectionHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[tenantKey]
	if !ok {
		return nil
	}
	now := time.Now()
	e.lastUsed = now
	e.handle.LastUsedAt = now
	return e.handle
}

// Put inserts or replaces the handle for a tenant key. A replaced isolated
// handle is closed, keeping the one-live-handle-per-tenant invariant.
func (c *ConnectionCache) Put(tenantKey string, h *model.ConnectionHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[tenantKey]; ok {
		_ = old.handle.Close()
	}
	c.entries[tenantKey] = &entry{handle: h, lastUsed: time.Now()}
	metrics.CachedConnections.Set(float64(len(c.entries)))
}

// Invalidate removes and closes a tenant's handle immediately. Used when a
// tenant's status flips to non-active and on explicit admin action.
func (c *ConnectionCache) Invalidate(tenantKey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[tenantKey]
	if !ok {
		return false
	}
	_ = e.handle.Close()
	delete(c.entries, tenantKey)
	metrics.CachedConnections.Set(float64(len(c.entries)))
	metrics.CacheEvictions.WithLabelValues("invalidated").Inc()
	log.Printf("[Cache] Invalidated handle for tenant %s", tenantKey)
	return true
}

// EvictIdle removes every entry idle longer than maxIdle and returns how
// many were evicted. Runs off the request path, on the reaper's timer.
func (c *ConnectionCache) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, e := range c.entries {
		if e.lastUsed.Before(cutoff) {
			_ = e.handle.Close()
			delete(c.entries, key)
			evicted++
			metrics.CacheEvictions.WithLabelValues("idle").Inc()
		}
	}
	if evicted > 0 {
		metrics.CachedConnections.Set(float64(len(c.entries)))
		log.Printf("[Cache] Reaper evicted %d idle handle(s)", evicted)
	}
	return evicted
}

// Shutdown closes every cached handle. Called once at process teardown.
func (c *ConnectionCache) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		_ = e.handle.Close()
		delete(c.entries, key)
	}
	metrics.CachedConnections.Set(0)
}

// EntryStats is one row of the monitoring snapshot.
type EntryStats struct {
	Subdomain    string    `json:"subdomain"`
	IsActive     bool      `json:"isActive"`
	LastActivity time.Time `json:"lastActivity"`
}

// Stats is a point-in-time view of the cache for dashboards.
type Stats struct {
	Total   int          `json:"total"`
	Active  int          `json:"active"`
	Entries []EntryStats `json:"entries"`
}

// Stats snapshots the cache without mutating it. Entries are "active" when
// used within the last five minutes.
func (c *ConnectionCache) Stats() Stats {
	const activeWindow = 5 * time.Minute
	cutoff := time.Now().Add(-activeWindow)

	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Total:   len(c.entries),
		Entries: make([]EntryStats, 0, len(c.entries)),
	}
	for key, e := range c.entries {
		active := e.lastUsed.After(cutoff)
		if active {
			s.Active++
		}
		s.Entries = append(s.Entries, EntryStats{
			Subdomain:    key,
			IsActive:     active,
			LastActivity: e.lastUsed,
		})
	}
	return s
}
