package component_test

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/compgraph/pkg/cache"
	"github.com/matzehuels/compgraph/pkg/component"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
	"github.com/matzehuels/compgraph/pkg/identity"
	"github.com/matzehuels/compgraph/pkg/store/memory"
)

func newGraph(t *testing.T, opts component.Options) (*component.Graph, *memory.Store) {
	t.Helper()
	store := memory.New()
	if opts.IDs == nil {
		opts.IDs = identity.NewSequence("n")
	}
	return component.New(store, opts), store
}

func mustCreate(t *testing.T, g *component.Graph, typeID string) *component.Node {
	t.Helper()
	n, err := g.Create(context.Background(), typeID, "alice")
	if err != nil {
		t.Fatalf("Create(%q): %v", typeID, err)
	}
	return n
}

func childIDs(t *testing.T, n *component.Node) []string {
	t.Helper()
	ids, err := n.ChildIDs(context.Background())
	if err != nil {
		t.Fatalf("ChildIDs(%s): %v", n.ID(), err)
	}
	return ids
}

func TestCreate(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g, _ := newGraph(t, component.Options{Now: func() time.Time { return fixed }})

	n := mustCreate(t, g, "folder")
	if n.ID() != "n-1" {
		t.Errorf("ID = %q, want n-1", n.ID())
	}
	if n.TypeID() != "folder" || n.Owner() != "alice" || n.Creator() != "alice" {
		t.Errorf("unexpected scalars: %s owner=%s creator=%s", n.TypeID(), n.Owner(), n.Creator())
	}
	if !n.Created().Equal(fixed) {
		t.Errorf("Created = %v, want %v", n.Created(), fixed)
	}
	if n.DisplayName() != "n-1" {
		t.Errorf("DisplayName should fall back to id, got %q", n.DisplayName())
	}
	if !n.IsDirty() {
		t.Error("new node should be dirty")
	}
	if n.Version() != 0 || n.Persisted() {
		t.Error("new node should not be persisted")
	}
	if ids := childIDs(t, n); len(ids) != 0 {
		t.Errorf("new node children = %v", ids)
	}
}

func TestCreateUncreatableType(t *testing.T) {
	g, _ := newGraph(t, component.Options{Types: onlyTypes{"folder": nil}})

	_, err := g.Create(context.Background(), "widget", "alice")
	if !cerrors.Is(err, cerrors.ErrCodeUncreatableType) {
		t.Fatalf("err = %v, want UNCREATABLE_TYPE", err)
	}
}

func TestSaveAndLookup(t *testing.T) {
	ctx := context.Background()
	g, store := newGraph(t, component.Options{})

	parent := mustCreate(t, g, "folder")
	child := mustCreate(t, g, "note")
	parent.SetDisplayName("root")
	if err := parent.AddChildren(ctx, -1, child); err != nil {
		t.Fatal(err)
	}
	for _, n := range []*component.Node{child, parent} {
		if err := n.Save(ctx); err != nil {
			t.Fatalf("Save(%s): %v", n.ID(), err)
		}
	}
	if parent.IsDirty() || child.IsDirty() {
		t.Error("saved nodes should be clean")
	}
	if parent.Version() != 1 {
		t.Errorf("Version = %d, want 1", parent.Version())
	}

	same, err := g.Lookup(ctx, parent.ID())
	if err != nil {
		t.Fatal(err)
	}
	if same != parent {
		t.Error("Lookup of a live node should return the same instance")
	}

	// A second graph over the same store reads the committed state.
	g2 := component.New(store, component.Options{})
	loaded, err := g2.Lookup(ctx, parent.ID())
	if err != nil {
		t.Fatal(err)
	}
	if loaded.DisplayName() != "root" || loaded.Version() != 1 {
		t.Errorf("loaded = %q v%d", loaded.DisplayName(), loaded.Version())
	}
	if got := childIDs(t, loaded); !slices.Equal(got, []string{child.ID()}) {
		t.Errorf("loaded children = %v", got)
	}

	if _, err := g2.Lookup(ctx, "missing"); !cerrors.Is(err, cerrors.ErrCodeNotFound) {
		t.Errorf("Lookup(missing) err = %v, want NOT_FOUND", err)
	}
}

func TestSaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	g, store := newGraph(t, component.Options{})

	n := mustCreate(t, g, "folder")
	if err := n.Save(ctx); err != nil {
		t.Fatal(err)
	}
	commits := store.Commits()
	for range 3 {
		if err := n.Save(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if store.Commits() != commits {
		t.Errorf("redundant saves committed %d times", store.Commits()-commits)
	}

	// A dirty flag without a content change keeps the version.
	n.MarkDirty()
	if err := n.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if n.Version() != 1 {
		t.Errorf("Version = %d, want 1 for unchanged content", n.Version())
	}

	n.SetDisplayName("renamed")
	if err := n.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if n.Version() != 2 {
		t.Errorf("Version = %d, want 2 after change", n.Version())
	}
}

func TestAddChildrenIndexAndMove(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t, component.Options{})

	p := mustCreate(t, g, "folder")
	a, b, c, d := mustCreate(t, g, "note"), mustCreate(t, g, "note"), mustCreate(t, g, "note"), mustCreate(t, g, "note")

	if err := p.AddChildren(ctx, -1, a, b, c); err != nil {
		t.Fatal(err)
	}
	if err := p.AddChildren(ctx, 1, d); err != nil {
		t.Fatal(err)
	}
	want := []string{a.ID(), d.ID(), b.ID(), c.ID()}
	if got := childIDs(t, p); !slices.Equal(got, want) {
		t.Fatalf("after insert: %v, want %v", got, want)
	}

	// Moving a to index 3 removes it first, shifting the index by one.
	if err := p.AddChildren(ctx, 3, a); err != nil {
		t.Fatal(err)
	}
	want = []string{d.ID(), b.ID(), a.ID(), c.ID()}
	if got := childIDs(t, p); !slices.Equal(got, want) {
		t.Errorf("after move: %v, want %v", got, want)
	}

	// Out-of-range index appends; duplicates in one call collapse.
	if err := p.AddChildren(ctx, 99, b, b); err != nil {
		t.Fatal(err)
	}
	want = []string{d.ID(), a.ID(), c.ID(), b.ID()}
	if got := childIDs(t, p); !slices.Equal(got, want) {
		t.Errorf("after append: %v, want %v", got, want)
	}
}

func TestSelfChildIsAllowed(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t, component.Options{})

	n := mustCreate(t, g, "folder")
	if err := n.AddChildren(ctx, -1, n); err != nil {
		t.Fatal(err)
	}
	if err := n.Save(ctx); err != nil {
		t.Fatal(err)
	}
	kids, err := n.Children(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) != 1 || kids[0] != n {
		t.Errorf("self-cycle children = %v", kids)
	}
}

func TestRemoveChildren(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t, component.Options{})

	p := mustCreate(t, g, "folder")
	a, b := mustCreate(t, g, "note"), mustCreate(t, g, "note")
	if err := p.AddChildren(ctx, -1, a, b); err != nil {
		t.Fatal(err)
	}
	if err := p.Save(ctx); err != nil {
		t.Fatal(err)
	}

	// Removing a non-child leaves the node clean.
	stranger := mustCreate(t, g, "note")
	if err := p.RemoveChildren(ctx, stranger); err != nil {
		t.Fatal(err)
	}
	if p.IsDirty() {
		t.Error("no-op removal should not dirty the node")
	}

	if err := p.RemoveChildren(ctx, a); err != nil {
		t.Fatal(err)
	}
	if !p.IsDirty() {
		t.Error("removal should dirty the node")
	}
	if got := childIDs(t, p); !slices.Equal(got, []string{b.ID()}) {
		t.Errorf("children = %v", got)
	}
}

func TestReorder(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t, component.Options{})

	p := mustCreate(t, g, "folder")
	a, b, c := mustCreate(t, g, "note"), mustCreate(t, g, "note"), mustCreate(t, g, "note")
	if err := p.AddChildren(ctx, -1, a, b, c); err != nil {
		t.Fatal(err)
	}

	if err := p.Reorder(ctx, []*component.Node{c, a, b}); err != nil {
		t.Fatal(err)
	}
	if got := childIDs(t, p); !slices.Equal(got, []string{c.ID(), a.ID(), b.ID()}) {
		t.Errorf("children = %v", got)
	}

	err := p.Reorder(ctx, []*component.Node{a, b})
	if !cerrors.Is(err, cerrors.ErrCodeInvalidInput) {
		t.Errorf("partial reorder err = %v, want INVALID_INPUT", err)
	}
	err = p.Reorder(ctx, []*component.Node{a, a, b})
	if !cerrors.Is(err, cerrors.ErrCodeInvalidInput) {
		t.Errorf("duplicate reorder err = %v, want INVALID_INPUT", err)
	}
}

func TestPolicyDenialIsNoOp(t *testing.T) {
	ctx := context.Background()
	locked := ""
	gate := gateFunc(func(_ context.Context, p component.Proposal) component.Decision {
		if p.Action == component.ActionCreate && p.TypeID == "secret" {
			return component.Deny("secrets are read-only")
		}
		if p.Subject != nil && p.Subject.ID() == locked {
			return component.Deny("node is locked")
		}
		return component.Allow
	})
	g, _ := newGraph(t, component.Options{Policy: gate})

	if _, err := g.Create(ctx, "secret", "alice"); !cerrors.Is(err, cerrors.ErrCodePolicyDenied) {
		t.Fatalf("Create err = %v, want POLICY_DENIED", err)
	}

	p := mustCreate(t, g, "folder")
	a := mustCreate(t, g, "note")
	if err := p.AddChildren(ctx, -1, a); err != nil {
		t.Fatal(err)
	}
	if err := p.Save(ctx); err != nil {
		t.Fatal(err)
	}

	locked = p.ID()
	b := mustCreate(t, g, "note")
	err := p.AddChildren(ctx, -1, b)
	if !cerrors.Is(err, cerrors.ErrCodePolicyDenied) {
		t.Fatalf("AddChildren err = %v, want POLICY_DENIED", err)
	}
	if cerrors.UserMessage(err) != "add_children: node is locked" {
		t.Errorf("message = %q", cerrors.UserMessage(err))
	}
	if err := p.RemoveChildren(ctx, a); !cerrors.Is(err, cerrors.ErrCodePolicyDenied) {
		t.Errorf("RemoveChildren err = %v", err)
	}
	if err := p.Reorder(ctx, []*component.Node{a}); !cerrors.Is(err, cerrors.ErrCodePolicyDenied) {
		t.Errorf("Reorder err = %v", err)
	}
	if p.IsDirty() {
		t.Error("denied mutations must not dirty the node")
	}
	if got := childIDs(t, p); !slices.Equal(got, []string{a.ID()}) {
		t.Errorf("children changed by denied mutation: %v", got)
	}
}

func TestEvictChildrenReloads(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(time.Minute, time.Minute)
	g, _ := newGraph(t, component.Options{Cache: mc})

	p := mustCreate(t, g, "folder")
	a, b := mustCreate(t, g, "note"), mustCreate(t, g, "note")
	_ = p.AddChildren(ctx, -1, a, b)
	if err := p.Save(ctx); err != nil {
		t.Fatal(err)
	}
	before := childIDs(t, p)
	if mc.Len() == 0 {
		t.Fatal("save should populate the child cache")
	}

	if err := p.EvictChildren(ctx); err != nil {
		t.Fatal(err)
	}
	mc.Flush()
	after := childIDs(t, p)
	if !slices.Equal(before, after) {
		t.Errorf("reloaded children %v differ from %v", after, before)
	}
}

func TestNullCacheStillWorks(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t, component.Options{Cache: cache.NewNullCache()})

	p := mustCreate(t, g, "folder")
	a := mustCreate(t, g, "note")
	_ = p.AddChildren(ctx, -1, a)
	if err := p.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if got := childIDs(t, p); !slices.Equal(got, []string{a.ID()}) {
		t.Errorf("children = %v", got)
	}
}

func TestInconsistentCachePanics(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(time.Minute, time.Minute)
	g, _ := newGraph(t, component.Options{Cache: mc})

	p := mustCreate(t, g, "folder")
	if err := p.Save(ctx); err != nil {
		t.Fatal(err)
	}
	key := cache.NewDefaultKeyer().ChildRefsKey(p.ID(), p.Version())
	_ = mc.Set(ctx, key, []byte(`["ghost"]`), 0)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for a cache that disagrees with the store")
		}
	}()
	p.SetOwner("alice")
	_ = p.Save(ctx)
}

func TestViewState(t *testing.T) {
	ctx := context.Background()
	g, store := newGraph(t, component.Options{})

	n := mustCreate(t, g, "provenance.file")
	bag := component.PropertyBag{"source": "a.json"}
	if err := n.SetViewState(ctx, "provenance", bag); err != nil {
		t.Fatal(err)
	}
	bag["source"] = "mutated"

	got, err := n.ViewState(ctx, "provenance")
	if err != nil {
		t.Fatal(err)
	}
	if got["source"] != "a.json" {
		t.Errorf("view state aliased caller map: %v", got)
	}
	if err := n.Save(ctx); err != nil {
		t.Fatal(err)
	}

	loaded, err := component.New(store, component.Options{}).Lookup(ctx, n.ID())
	if err != nil {
		t.Fatal(err)
	}
	got, err = loaded.ViewState(ctx, "provenance")
	if err != nil {
		t.Fatal(err)
	}
	if got["source"] != "a.json" {
		t.Errorf("persisted view state = %v", got)
	}
}

func TestWorkUnitDelegate(t *testing.T) {
	ctx := context.Background()
	g, store := newGraph(t, component.Options{})

	head := mustCreate(t, g, "folder")
	member := mustCreate(t, g, "note")
	member.SetDelegate(head)
	for _, n := range []*component.Node{head, member} {
		if err := n.Save(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if head.IsDirty() || member.IsDirty() {
		t.Fatal("unit should be clean after save")
	}

	member.SetDisplayName("edited")
	if !head.IsDirty() || !member.IsDirty() {
		t.Error("a dirty member should make the whole unit dirty")
	}

	// Saving the head commits the member.
	if err := head.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if member.IsDirty() {
		t.Error("member should be clean after saving its delegate")
	}
	rec, err := store.Load(ctx, member.ID())
	if err != nil {
		t.Fatal(err)
	}
	if rec.DisplayName != "edited" || rec.Delegate != head.ID() {
		t.Errorf("stored member = %+v", rec)
	}

	// The delegate link survives a reload.
	loaded, err := component.New(store, component.Options{}).Lookup(ctx, member.ID())
	if err != nil {
		t.Fatal(err)
	}
	if d := loaded.Delegate(); d == nil || d.ID() != head.ID() {
		t.Errorf("reloaded delegate = %v", d)
	}
}

func TestConcurrentSavesOfSharedDelegate(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t, component.Options{})

	head := mustCreate(t, g, "folder")
	members := make([]*component.Node, 8)
	for i := range members {
		members[i] = mustCreate(t, g, "note")
		members[i].SetDelegate(head)
	}

	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.SetDisplayName("member")
			if err := m.Save(ctx); err != nil {
				t.Errorf("Save(%d): %v", i, err)
			}
		}()
	}
	wg.Wait()

	if head.IsDirty() {
		t.Error("unit should be clean after all saves complete")
	}
	if g.Pinned() != 0 {
		t.Errorf("Pinned = %d, want 0", g.Pinned())
	}
}

func TestMutationDuringCommitStaysDirty(t *testing.T) {
	ctx := context.Background()
	var target *component.Node
	store := &hookStore{Store: memory.New()}
	store.onCommit = func() {
		store.onCommit = nil
		target.SetDisplayName("late edit")
	}
	g := component.New(store, component.Options{})

	target = mustCreate(t, g, "note")
	if err := target.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if !target.IsDirty() {
		t.Fatal("a mutation made during commit must keep the node dirty")
	}
	if err := target.Save(ctx); err != nil {
		t.Fatal(err)
	}
	rec, _ := store.Load(ctx, target.ID())
	if rec.DisplayName != "late edit" {
		t.Errorf("late edit lost: %+v", rec)
	}
}

func TestClone(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t, component.Options{})

	src := mustCreate(t, g, "folder")
	child := mustCreate(t, g, "note")
	src.SetDisplayName("original")
	_ = src.SetViewState(ctx, "layout", component.PropertyBag{"x": "1"})
	_ = src.AddChildren(ctx, -1, child)

	c, err := src.Clone(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID() == src.ID() {
		t.Error("clone must get a fresh id")
	}
	if c.DisplayName() != "original" || c.TypeID() != "folder" {
		t.Errorf("clone scalars = %q %q", c.DisplayName(), c.TypeID())
	}
	if got := childIDs(t, c); !slices.Equal(got, []string{child.ID()}) {
		t.Errorf("clone children = %v", got)
	}

	_ = c.SetViewState(ctx, "layout", component.PropertyBag{"x": "2"})
	orig, _ := src.ViewState(ctx, "layout")
	if orig["x"] != "1" {
		t.Error("clone view state must be a deep copy")
	}
}

func TestWalkTerminatesOnCycles(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t, component.Options{})

	a, b, c := mustCreate(t, g, "folder"), mustCreate(t, g, "folder"), mustCreate(t, g, "note")
	_ = a.AddChildren(ctx, -1, b, c)
	_ = b.AddChildren(ctx, -1, a, c)

	var order []string
	err := component.Walk(ctx, []*component.Node{a, b}, func(n *component.Node) (bool, error) {
		order = append(order, n.ID())
		return true, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{a.ID(), b.ID(), c.ID()}
	if !slices.Equal(order, want) {
		t.Errorf("walk order = %v, want %v", order, want)
	}
}

func TestSaveAllWithin(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t, component.Options{})

	a, b, c := mustCreate(t, g, "folder"), mustCreate(t, g, "folder"), mustCreate(t, g, "note")
	_ = a.AddChildren(ctx, -1, b)
	_ = b.AddChildren(ctx, -1, a, c)

	saved, err := component.SaveAll(ctx, []*component.Node{a}, func(n *component.Node) bool {
		return n != c
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved != 2 {
		t.Errorf("saved = %d, want 2", saved)
	}
	if a.IsDirty() || b.IsDirty() {
		t.Error("accepted nodes should be saved")
	}
	if !c.IsDirty() {
		t.Error("rejected node should stay dirty")
	}
}

func TestArenaReleasesCleanNodes(t *testing.T) {
	ctx := context.Background()
	g, _ := newGraph(t, component.Options{})

	func() {
		n := mustCreate(t, g, "note")
		if err := n.Save(ctx); err != nil {
			t.Fatal(err)
		}
	}()
	dirty := mustCreate(t, g, "note")

	runtime.GC()
	runtime.GC()

	if g.Resident() != 1 {
		t.Errorf("Resident = %d, want only the dirty node", g.Resident())
	}
	if g.Pinned() != 1 {
		t.Errorf("Pinned = %d, want 1", g.Pinned())
	}
	runtime.KeepAlive(dirty)
}

type onlyTypes map[string][]string

func (o onlyTypes) Creatable(id string) bool {
	_, ok := o[id]
	return ok
}

func (o onlyTypes) ViewTypes(id string) []string { return o[id] }

type gateFunc func(context.Context, component.Proposal) component.Decision

func (f gateFunc) Decide(ctx context.Context, p component.Proposal) component.Decision {
	return f(ctx, p)
}

type hookStore struct {
	*memory.Store
	onCommit func()
}

func (s *hookStore) Commit(ctx context.Context, rec *component.Record) (uint32, error) {
	if s.onCommit != nil {
		s.onCommit()
	}
	return s.Store.Commit(ctx, rec)
}
