package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Exchange hooks
	x := NoopExchangeHooks{}
	x.OnExportStart(ctx, 2)
	x.OnExportComplete(ctx, 10, time.Second, nil)
	x.OnImportStart(ctx, 3)
	x.OnImportComplete(ctx, 7, 1, time.Second, nil)

	// Store hooks
	s := NoopStoreHooks{}
	s.OnLoad(ctx, "n1", time.Millisecond, nil)
	s.OnCommit(ctx, "n1", 4, time.Millisecond, nil)

	// Cache hooks
	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "children")
	c.OnCacheMiss(ctx, "children")
	c.OnCacheSet(ctx, "children", 1024)
}

func TestGlobalHooksRegistry(t *testing.T) {
	// Reset to known state
	Reset()

	// Verify defaults are noop
	if _, ok := Exchange().(NoopExchangeHooks); !ok {
		t.Error("Exchange() should return NoopExchangeHooks by default")
	}
	if _, ok := Store().(NoopStoreHooks); !ok {
		t.Error("Store() should return NoopStoreHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}

	customExchange := &testExchangeHooks{}
	SetExchangeHooks(customExchange)
	if Exchange() != customExchange {
		t.Error("SetExchangeHooks should set custom hooks")
	}

	customStore := &testStoreHooks{}
	SetStoreHooks(customStore)
	if Store() != customStore {
		t.Error("SetStoreHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	// Reset and verify
	Reset()
	if _, ok := Exchange().(NoopExchangeHooks); !ok {
		t.Error("Reset() should restore NoopExchangeHooks")
	}
	if _, ok := Store().(NoopStoreHooks); !ok {
		t.Error("Reset() should restore NoopStoreHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testExchangeHooks{}
	SetExchangeHooks(custom)

	// Setting nil should be ignored
	SetExchangeHooks(nil)

	if Exchange() != custom {
		t.Error("SetExchangeHooks(nil) should be ignored")
	}

	Reset()
}

// Test implementations
type testExchangeHooks struct{ NoopExchangeHooks }
type testStoreHooks struct{ NoopStoreHooks }
type testCacheHooks struct{ NoopCacheHooks }
