package tool

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mediapulse/patternlab/pkg/models"
)

type cacheEntry struct {
	response models.ToolResponse
	storedAt time.Time
	ttl      time.Duration
}

// Cache is a thread-safe response cache shared across sessions, keyed by
// (tool name, normalized params) with a per-entry TTL. Expired entries are
// cleaned up lazily on Get — no background goroutine.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

// NewCache creates an empty response cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*cacheEntry)}
}

// Get returns a cached response if present and unexpired.
func (c *Cache) Get(toolName string, params map[string]any) (*models.ToolResponse, bool) {
	key := cacheKey(toolName, params)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Since(entry.storedAt) > entry.ttl {
		// Re-check under write lock: a concurrent Set may have replaced the
		// entry with a fresh one between RUnlock and Lock.
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && time.Since(current.storedAt) > current.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	resp := entry.response
	resp.Metadata.Cached = true
	return &resp, true
}

// Set stores a response with the given TTL. Last writer wins.
func (c *Cache) Set(toolName string, params map[string]any, resp *models.ToolResponse, ttl time.Duration) {
	if resp == nil || ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[cacheKey(toolName, params)] = &cacheEntry{
		response: *resp,
		storedAt: time.Now(),
		ttl:      ttl,
	}
	c.mu.Unlock()
}

// Len returns the number of live-or-expired entries currently held.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cacheKey normalizes params into a stable key. json.Marshal sorts map keys,
// so equivalent param maps produce identical keys.
func cacheKey(toolName string, params map[string]any) string {
	data, err := json.Marshal(params)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", params))
	}
	return toolName + "|" + string(data)
}
