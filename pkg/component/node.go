package component

import (
	"context"
	"sync"
	"time"

	cerrors "github.com/matzehuels/compgraph/pkg/errors"
	"github.com/matzehuels/compgraph/pkg/observability"
)

// Node is a live component instance. All methods are safe for concurrent use.
type Node struct {
	graph  *Graph
	id     string
	typeID string

	mu          sync.RWMutex
	displayName string
	owner       string
	creator     string
	externalKey string
	created     time.Time
	version     uint32
	persisted   bool

	// dirty marks this node's own state as uncommitted. gen counts local
	// mutations so a save can tell whether the node changed mid-commit.
	dirty bool
	gen   uint64

	delegate   *Node
	delegateID string
	members    map[string]*Node

	// overlay holds the uncommitted child list; it wins over the cache.
	overlay bool
	pending []string

	viewLoaded bool
	viewState  map[string]PropertyBag

	// saveMu serializes saves of the work unit this node heads.
	saveMu sync.Mutex
}

func (n *Node) hydrate(rec *Record) {
	n.displayName = rec.DisplayName
	n.owner = rec.Owner
	n.creator = rec.Creator
	n.externalKey = rec.ExternalKey
	n.created = rec.Created
	n.version = rec.Version
	n.delegateID = rec.Delegate
	n.persisted = true
}

// Graph returns the graph the node belongs to.
func (n *Node) Graph() *Graph { return n.graph }

// ID returns the node's stable identifier.
func (n *Node) ID() string { return n.id }

// TypeID returns the node's type.
func (n *Node) TypeID() string { return n.typeID }

// DisplayName returns the node's name, falling back to its id.
func (n *Node) DisplayName() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.displayName == "" {
		return n.id
	}
	return n.displayName
}

// Name returns the explicitly set display name, which may be empty.
func (n *Node) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.displayName
}

func (n *Node) Owner() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.owner
}

func (n *Node) Creator() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.creator
}

func (n *Node) Created() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.created
}

func (n *Node) ExternalKey() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.externalKey
}

// Version returns the last committed version, or 0 for a node never saved.
func (n *Node) Version() uint32 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.version
}

// Persisted reports whether the node has been committed at least once.
func (n *Node) Persisted() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.persisted
}

func (n *Node) SetDisplayName(name string) { n.update(func() { n.displayName = name }) }
func (n *Node) SetOwner(owner string)      { n.update(func() { n.owner = owner }) }
func (n *Node) SetCreator(creator string)  { n.update(func() { n.creator = creator }) }
func (n *Node) SetCreated(t time.Time)     { n.update(func() { n.created = t.UTC() }) }
func (n *Node) SetExternalKey(key string)  { n.update(func() { n.externalKey = key }) }

// ViewState returns a copy of the persisted state of one view kind, loading
// the node's view state from the store on first access.
func (n *Node) ViewState(ctx context.Context, viewType string) (PropertyBag, error) {
	if err := n.loadViewState(ctx); err != nil {
		return nil, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.viewState[viewType].Clone(), nil
}

// SetViewState replaces the state of one view kind.
func (n *Node) SetViewState(ctx context.Context, viewType string, bag PropertyBag) error {
	if err := n.loadViewState(ctx); err != nil {
		return err
	}
	n.update(func() { n.viewState[viewType] = bag.Clone() })
	return nil
}

func (n *Node) loadViewState(ctx context.Context) error {
	n.mu.RLock()
	loaded := n.viewLoaded
	n.mu.RUnlock()
	if loaded {
		return nil
	}

	start := time.Now()
	rec, err := n.graph.store.Load(ctx, n.id)
	observability.Store().OnLoad(ctx, n.id, time.Since(start), err)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodePersistence, err, "load view state of %s", n.id)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.viewLoaded {
		n.viewState = cloneViewState(rec.ViewState)
		n.viewLoaded = true
	}
	return nil
}

// Delegate returns the node's work-unit delegate, or nil.
func (n *Node) Delegate() *Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.delegate
}

// SetDelegate makes d the head of n's work unit. Passing nil or n itself
// makes n its own unit. Pending changes on n move with it to the new unit.
func (n *Node) SetDelegate(d *Node) {
	if d == n {
		d = nil
	}
	n.mu.Lock()
	old := n.delegate
	n.delegate = d
	n.delegateID = ""
	if d != nil {
		n.delegateID = d.id
	}
	n.dirty = true
	n.gen++
	n.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		delete(old.members, n.id)
		old.mu.Unlock()
	}
	n.enroll()
}

// unit returns the head of n's work unit. Delegate chains are followed;
// a chain that loops back stops at the node where the loop closes.
func (n *Node) unit() *Node {
	seen := map[*Node]bool{n: true}
	cur := n
	for {
		cur.mu.RLock()
		d := cur.delegate
		cur.mu.RUnlock()
		if d == nil || seen[d] {
			return cur
		}
		seen[d] = true
		cur = d
	}
}

// IsDirty reports whether n's work unit has uncommitted changes.
func (n *Node) IsDirty() bool {
	u := n.unit()
	u.mu.RLock()
	dirty := u.dirty
	members := make([]*Node, 0, len(u.members))
	for _, m := range u.members {
		members = append(members, m)
	}
	u.mu.RUnlock()
	if dirty {
		return true
	}
	for _, m := range members {
		m.mu.RLock()
		d := m.dirty
		m.mu.RUnlock()
		if d {
			return true
		}
	}
	return false
}

// MarkDirty flags n as changed so the next save of its unit commits it.
func (n *Node) MarkDirty() {
	n.update(func() {})
}

// update applies a local mutation and marks the node dirty.
func (n *Node) update(fn func()) {
	n.mu.Lock()
	fn()
	n.dirty = true
	n.gen++
	n.mu.Unlock()
	n.enroll()
}

// enroll pins a dirty node and registers it with its unit head. The head
// needs no pin of its own: members reach it through their delegate field.
func (n *Node) enroll() {
	n.graph.pin(n)
	u := n.unit()
	if u == n {
		return
	}
	u.mu.Lock()
	if u.members == nil {
		u.members = make(map[string]*Node)
	}
	u.members[n.id] = n
	u.mu.Unlock()
}

// snapshot captures the committed form of n.
// The caller holds n.mu for reading.
func (n *Node) snapshotLocked(children []string) *Record {
	rec := &Record{
		ID:          n.id,
		TypeID:      n.typeID,
		DisplayName: n.displayName,
		Owner:       n.owner,
		Creator:     n.creator,
		Created:     n.created,
		ExternalKey: n.externalKey,
		Delegate:    n.delegateID,
		Version:     n.version,
		Children:    append([]string{}, children...),
	}
	if len(n.viewState) > 0 {
		rec.ViewState = cloneViewState(n.viewState)
	}
	return rec
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	return n.typeID + ":" + n.id
}
