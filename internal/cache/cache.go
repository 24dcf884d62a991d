package cache

import (
	"strings"
	"sync"
	"time"
)

// TTL constants for captured command output
const (
	// Chassis inventory - hardware only changes on a swap
	TTLInventory = 1 * time.Hour

	// Interface state, optics, alarms
	TTLState = 5 * time.Minute

	// Default cap when none is configured
	TTLCapture = 10 * time.Minute
)

// CacheEntry holds a cached value with expiration
type CacheEntry struct {
	Value     string
	ExpiresAt time.Time
	FetchedAt time.Time
}

// IsExpired returns true if the entry has expired
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Age returns how long ago the entry was fetched
func (e *CacheEntry) Age() time.Duration {
	return time.Since(e.FetchedAt)
}

// Cache provides thread-safe TTL caching of raw command captures
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	ttl     time.Duration
}

// New creates a new cache instance. ttl caps the lifetime of every entry;
// zero uses TTLCapture.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = TTLCapture
	}
	return &Cache{
		entries: make(map[string]*CacheEntry),
		ttl:     ttl,
	}
}

// Key builds the cache key for a command on a host
func Key(host, command string) string {
	return host + "|" + command
}

// Get retrieves a capture, ok is false if expired or not found
func (c *Cache) Get(host, command string) (string, bool) {
	entry := c.GetEntry(host, command)
	if entry == nil {
		return "", false
	}
	return entry.Value, true
}

// GetEntry retrieves the live cache entry (for checking age, etc.), nil if
// expired or not found
func (c *Cache) GetEntry(host, command string) *CacheEntry {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[Key(host, command)]
	if !ok || entry.IsExpired() {
		return nil
	}
	return entry
}

// Set stores a capture with the given TTL, bounded by the cache's own TTL.
// A zero ttl uses the cache TTL.
func (c *Cache) Set(host, command, value string, ttl time.Duration) {
	if c == nil {
		return
	}
	if ttl == 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.entries[Key(host, command)] = &CacheEntry{
		Value:     value,
		ExpiresAt: now.Add(ttl),
		FetchedAt: now,
	}
}

// Forget drops every capture of one host
func (c *Cache) Forget(host string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := host + "|"
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of entries, expired ones included
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes expired entries and returns how many were dropped
func (c *Cache) Cleanup() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, v := range c.entries {
		if v.IsExpired() {
			delete(c.entries, k)
			n++
		}
	}
	return n
}
