package cache

// ScopedKeyer prefixes another Keyer's keys so caches shared between stores
// never return another store's entries.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), StoreScope(dsn))
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer returns inner (or the default keyer when nil) with prefix
// prepended to every key.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ChildRefsKey returns the scoped key of a child-reference list.
func (k *ScopedKeyer) ChildRefsKey(nodeID string, version uint32) string {
	return k.prefix + k.inner.ChildRefsKey(nodeID, version)
}
