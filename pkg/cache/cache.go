// Package cache provides the soft caches that sit in front of the persistence store.
//
// The component runtime keeps each node's ordered child-reference list in a
// [Cache] rather than pinning it in the node itself. Entries are a pure
// function of committed store state: keys carry the node version (see
// [Keyer]), so evicting an entry, or losing the whole cache, is always safe
// and the next read reloads an identical list from the store.
//
// # Implementations
//
//   - [MemoryCache]: in-process cache with expiry and a janitor (default)
//   - [FileCache]: on-disk cache for CLI runs against remote stores
//   - [NullCache]: stores nothing; every read is a miss (useful to exercise
//     reload paths in tests)
//
// # Retries
//
// [RetryWithBackoff] retries operations whose errors were wrapped with
// [Retryable]. Network-backed stores use it for commits and loads.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is a byte-oriented key/value cache with optional expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Keyer generates cache keys.
type Keyer interface {
	// ChildRefsKey returns the key for a node's child-reference list at a
	// given committed version.
	ChildRefsKey(nodeID string, version uint32) string
}

// DefaultKeyer generates unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ChildRefsKey generates a key of the form "children:<id>@<version>".
func (DefaultKeyer) ChildRefsKey(nodeID string, version uint32) string {
	return fmt.Sprintf("children:%s@%d", nodeID, version)
}
