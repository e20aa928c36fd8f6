// Package cache provides the payload cache the fetcher reads through.
// The cache is an explicit, injected service with a process lifecycle,
// never a package singleton, so tests can substitute their own.
package cache

import "time"

// Entry is one cached payload. Entries are replaced whole, never
// partially updated, so readers only ever see complete payloads.
type Entry struct {
	Payload   []byte
	FetchedAt time.Time
}

// Stats summarizes cache effectiveness.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// Cache is the contract shared by the in-memory and Redis backends.
type Cache interface {
	// Get returns the entry for key if present and fresh. Expired
	// entries count as misses.
	Get(key string) (Entry, bool)

	// Set stores a complete payload under key with the given TTL.
	Set(key string, payload []byte, ttl time.Duration)

	// Clear drops all entries.
	Clear()

	// Stop releases background resources. Safe to call once.
	Stop()
}
