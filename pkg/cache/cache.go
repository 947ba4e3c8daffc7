// Package cache is the two-tier label cache: a mutex-guarded in-memory map in
// front of the durable store. The memory tier answers synchronously; misses
// fall through to the durable tier and warm the memory tier on the way back.
package cache

import (
	"fmt"
	"sync"
	"time"

	"nameglass/models"
	"nameglass/pkg/store"
)

// StaleAfter is the revalidation threshold: entries older than this are still
// served, but trigger a background refresh.
const StaleAfter = 24 * time.Hour

// RetainFor is the durable-tier retention window enforced by PurgeExpired.
const RetainFor = 7 * 24 * time.Hour

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
	durable *store.Store
	now     func() time.Time
}

// New creates a cache over the durable store.
func New(durable *store.Store) *Cache {
	return &Cache{
		entries: make(map[string]models.CacheEntry),
		durable: durable,
		now:     time.Now,
	}
}

// Preload rebuilds the memory tier from the durable tier. Called once at
// session start; safe to call again after Clear.
func (c *Cache) Preload() error {
	entries, err := c.durable.AllLabels()
	if err != nil {
		return fmt.Errorf("failed to preload cache: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.entries[e.Handle] = e
	}
	return nil
}

// Get returns the entry for handle. A memory hit is answered without touching
// the durable tier; a memory miss consults the durable tier and populates the
// memory tier on a hit. A durable-tier error is treated as a miss.
func (c *Cache) Get(handle string) (models.CacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[handle]
	c.mu.RUnlock()
	if ok {
		return entry, true
	}

	entry, ok, err := c.durable.GetLabel(handle)
	if err != nil || !ok {
		return models.CacheEntry{}, false
	}

	c.mu.Lock()
	c.entries[handle] = entry
	c.mu.Unlock()
	return entry, true
}

// Put records a resolved label in both tiers, timestamped now. Labels are
// never empty: an empty label is stored as the handle itself. When the
// durable write fails the memory entry is dropped too, so callers never
// observe a half-written entry.
func (c *Cache) Put(handle, label string) error {
	if label == "" {
		label = handle
	}
	entry := models.CacheEntry{
		Handle:     handle,
		Label:      label,
		ResolvedAt: c.now(),
	}

	c.mu.Lock()
	c.entries[handle] = entry
	c.mu.Unlock()

	if err := c.durable.PutLabel(entry); err != nil {
		c.mu.Lock()
		delete(c.entries, handle)
		c.mu.Unlock()
		return fmt.Errorf("failed to persist label for %q: %w", handle, err)
	}
	return nil
}

// IsStale reports whether entry should be revalidated in the background.
// Staleness never invalidates: the stale label is still served.
func (c *Cache) IsStale(entry models.CacheEntry) bool {
	return c.now().Sub(entry.ResolvedAt) > StaleAfter
}

// PurgeExpired removes durable entries older than the retention window and
// drops their memory-tier counterparts. Reserved settings are never touched.
func (c *Cache) PurgeExpired() (int64, error) {
	cutoff := c.now().Add(-RetainFor)
	removed, err := c.durable.PurgeExpired(cutoff)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	for handle, entry := range c.entries {
		if entry.ResolvedAt.Before(cutoff) {
			delete(c.entries, handle)
		}
	}
	c.mu.Unlock()
	return removed, nil
}

// Clear empties both tiers. Used by the refresh-cache control message.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.entries = make(map[string]models.CacheEntry)
	c.mu.Unlock()
	return c.durable.ClearLabels()
}

// Len reports the memory-tier size.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
