// Package cache provides a bounded in-memory result cache keyed by symptom
// fingerprint.
package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/TriagePipe/internal/models"
)

// Defaults for cache construction.
const (
	// DefaultTTL is how long an entry remains valid after it is stored.
	DefaultTTL = 24 * time.Hour
	// DefaultCapacity is the maximum number of entries held at once.
	DefaultCapacity = 1000
)

// entry is one cached analysis result with its TTL and LRU bookkeeping.
// storedAt anchors expiry; lastAccess anchors eviction order.
type entry struct {
	result     models.AnalysisResult
	storedAt   time.Time
	lastAccess time.Time
}

// Cache is a bounded, TTL-limited result cache. Expiry is lazy: entries are
// dropped when a lookup finds them stale, never by a background sweep.
// Eviction at capacity removes the single least recently accessed entry.
// Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	ttl      time.Duration
	capacity int
}

// New creates a cache with the default TTL and capacity.
func New() *Cache {
	return NewWithConfig(DefaultTTL, DefaultCapacity)
}

// NewWithConfig creates a cache with explicit TTL and capacity. Non-positive
// values fall back to the defaults.
func NewWithConfig(ttl time.Duration, capacity int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		entries:  make(map[string]*entry),
		ttl:      ttl,
		capacity: capacity,
	}
}

// Get returns the cached result for the fingerprint, if present and fresh.
// A stale entry is deleted on sight and reported as a miss. Hits refresh the
// entry's eviction position.
func (c *Cache) Get(fingerprint string) (models.AnalysisResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fingerprint]
	if !ok {
		return models.AnalysisResult{}, false
	}
	now := time.Now()
	if now.Sub(e.storedAt) > c.ttl {
		delete(c.entries, fingerprint)
		slog.Debug("Cache.Get: entry expired", "fingerprint", fingerprint)
		return models.AnalysisResult{}, false
	}
	e.lastAccess = now
	slog.Debug("Cache.Get: hit", "fingerprint", fingerprint)
	return e.result, true
}

// Put stores a result under the fingerprint, evicting the least recently
// accessed entry when a new key would exceed capacity.
func (c *Cache) Put(fingerprint string, result models.AnalysisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[fingerprint]; !exists && len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	now := time.Now()
	c.entries[fingerprint] = &entry{result: result, storedAt: now, lastAccess: now}
	slog.Debug("Cache.Put: stored", "fingerprint", fingerprint, "size", len(c.entries))
}

// evictOldest removes the least recently accessed entry. Caller holds the lock.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	for key, e := range c.entries {
		if oldestKey == "" || e.lastAccess.Before(oldestTime) {
			oldestKey = key
			oldestTime = e.lastAccess
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		slog.Debug("Cache.evictOldest: evicted", "fingerprint", oldestKey)
	}
}

// Len returns the current number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cap returns the configured capacity.
func (c *Cache) Cap() int {
	return c.capacity
}
