package client

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// cacheEntry is one stored response payload. Valid iff
// now - timestamp < ttl.
type cacheEntry struct {
	data      json.RawMessage
	timestamp time.Time
	ttl       time.Duration
}

func (e cacheEntry) expired(now time.Time) bool {
	return now.Sub(e.timestamp) >= e.ttl
}

// responseCache stores successful response payloads keyed by METHOD:URL.
// Stale entries are deleted lazily on read and proactively by a background
// sweep.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	log     zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

func newResponseCache(sweepInterval time.Duration, log zerolog.Logger) *responseCache {
	c := &responseCache{
		entries: make(map[string]cacheEntry),
		log:     log,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.sweepLoop(sweepInterval)
	return c
}

// lookup returns the stored payload when present and fresh. A stale entry is
// deleted on the way out.
func (c *responseCache) lookup(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if entry.expired(time.Now()) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.data, true
}

func (c *responseCache) store(key string, data json.RawMessage, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{data: data, timestamp: time.Now(), ttl: ttl}
}

// clear removes entries whose key contains pattern; an empty pattern wipes
// everything.
func (c *responseCache) clear(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == "" {
		c.log.Debug().Int("entries", len(c.entries)).Msg("cache cleared")
		c.entries = make(map[string]cacheEntry)
		return
	}
	for key := range c.entries {
		if strings.Contains(key, pattern) {
			delete(c.entries, key)
			c.log.Debug().Str("key", key).Msg("cache entry cleared")
		}
	}
}

func (c *responseCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return CacheStats{Size: len(c.entries), Keys: keys}
}

func (c *responseCache) sweepLoop(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *responseCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	cleaned := 0
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			cleaned++
		}
	}
	if cleaned > 0 {
		c.log.Debug().Int("removed", cleaned).Msg("cache sweep removed expired entries")
	}
}

// close stops the sweep goroutine and drops all entries.
func (c *responseCache) close() {
	close(c.stop)
	<-c.done

	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// CacheStats is a point-in-time view of the response cache.
type CacheStats struct {
	Size int
	Keys []string
}
