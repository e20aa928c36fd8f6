package cache

import (
	"sync"
	"time"
)

// Memory is an in-process TTL cache. Expiry happens lazily on read and
// periodically via a cleanup goroutine; a bounded entry count evicts
// the least recently accessed entry first.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]*memoryEntry
	maxEntries int
	stats      Stats

	stopOnce sync.Once
	stopCh   chan struct{}
}

type memoryEntry struct {
	entry    Entry
	expires  time.Time
	accessed time.Time
}

// NewMemory creates a memory cache holding at most maxEntries entries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	c := &Memory{
		entries:    make(map[string]*memoryEntry),
		maxEntries: maxEntries,
		stopCh:     make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *Memory) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return Entry{}, false
	}
	if time.Now().After(e.expires) {
		delete(c.entries, key)
		c.stats.Misses++
		return Entry{}, false
	}

	e.accessed = time.Now()
	c.stats.Hits++
	return e.entry, true
}

func (c *Memory) Set(key string, payload []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLRU()
	}

	now := time.Now()
	c.entries[key] = &memoryEntry{
		entry: Entry{
			Payload:   append([]byte(nil), payload...),
			FetchedAt: now,
		},
		expires:  now.Add(ttl),
		accessed: now,
	}
}

func (c *Memory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*memoryEntry)
}

func (c *Memory) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Stats returns a copy of the counters.
func (c *Memory) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// evictLRU removes the least recently accessed entry. Caller holds the
// write lock.
func (c *Memory) evictLRU() {
	var oldestKey string
	oldest := time.Now().Add(time.Hour)
	for key, e := range c.entries {
		if e.accessed.Before(oldest) {
			oldest = e.accessed
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

func (c *Memory) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Memory) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, key)
		}
	}
}
