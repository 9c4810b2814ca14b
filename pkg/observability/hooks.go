// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about exchange runs, store round trips, and child-reference
// cache traffic.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so the graph runtime never
// imports a tracing backend. The tracing subpackage ships an OpenTelemetry
// implementation that the CLI installs behind --trace.
//
// # Usage
//
//	func main() {
//	    observability.SetExchangeHooks(tracing.NewExchangeHooks(tp))
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Exchange().OnImportStart(ctx, len(files))
//	// ... import ...
//	observability.Exchange().OnImportComplete(ctx, created, reused, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Exchange Hooks
// =============================================================================

// ExchangeHooks receives events from the exporter and importer.
type ExchangeHooks interface {
	// Export events
	OnExportStart(ctx context.Context, roots int)
	OnExportComplete(ctx context.Context, nodes int, duration time.Duration, err error)

	// Import events
	OnImportStart(ctx context.Context, files int)
	OnImportComplete(ctx context.Context, created, reused int, duration time.Duration, err error)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from node store round trips.
type StoreHooks interface {
	// OnLoad records a node record load.
	OnLoad(ctx context.Context, id string, duration time.Duration, err error)

	// OnCommit records a node commit and the version the store assigned.
	OnCommit(ctx context.Context, id string, version uint32, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopExchangeHooks is a no-op implementation of ExchangeHooks.
type NoopExchangeHooks struct{}

func (NoopExchangeHooks) OnExportStart(context.Context, int)                           {}
func (NoopExchangeHooks) OnExportComplete(context.Context, int, time.Duration, error) {}
func (NoopExchangeHooks) OnImportStart(context.Context, int)                           {}
func (NoopExchangeHooks) OnImportComplete(context.Context, int, int, time.Duration, error) {
}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnLoad(context.Context, string, time.Duration, error)           {}
func (NoopStoreHooks) OnCommit(context.Context, string, uint32, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	exchangeHooks ExchangeHooks = NoopExchangeHooks{}
	storeHooks    StoreHooks    = NoopStoreHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	hooksMu       sync.RWMutex
)

// SetExchangeHooks registers custom exchange hooks.
// This should be called once at application startup before any export or import.
func SetExchangeHooks(h ExchangeHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		exchangeHooks = h
	}
}

// SetStoreHooks registers custom store hooks.
func SetStoreHooks(h StoreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storeHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Exchange returns the registered exchange hooks.
func Exchange() ExchangeHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return exchangeHooks
}

// Store returns the registered store hooks.
func Store() StoreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storeHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	exchangeHooks = NoopExchangeHooks{}
	storeHooks = NoopStoreHooks{}
	cacheHooks = NoopCacheHooks{}
}
