package component

import (
	"context"
	"runtime"
	"sync"
	"time"
	"weak"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/compgraph/pkg/cache"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
	"github.com/matzehuels/compgraph/pkg/identity"
	"github.com/matzehuels/compgraph/pkg/observability"
)

// Options configures a Graph. Zero fields fall back to defaults.
type Options struct {
	IDs    IdentitySource // default: random UUIDs
	Types  TypeRegistry   // default: every type creatable, no view state
	Policy PolicyGate     // default: allow everything
	Cache  cache.Cache    // default: in-memory cache
	Keyer  cache.Keyer    // default: cache.DefaultKeyer
	Logger *log.Logger    // default: log.Default()

	// ChildTTL bounds how long a child-reference list stays cached.
	// Zero uses the cache's default expiration.
	ChildTTL time.Duration

	// Now overrides the clock used for creation timestamps.
	Now func() time.Time
}

// Graph is the node arena over one Store.
type Graph struct {
	store    Store
	ids      IdentitySource
	types    TypeRegistry
	policy   PolicyGate
	cache    cache.Cache
	keyer    cache.Keyer
	logger   *log.Logger
	childTTL time.Duration
	now      func() time.Time

	mu     sync.Mutex
	live   map[string]weak.Pointer[Node]
	pinned map[string]*Node
}

// New creates a Graph over store.
func New(store Store, opts Options) *Graph {
	g := &Graph{
		store:    store,
		ids:      opts.IDs,
		types:    opts.Types,
		policy:   opts.Policy,
		cache:    opts.Cache,
		keyer:    opts.Keyer,
		logger:   opts.Logger,
		childTTL: opts.ChildTTL,
		now:      opts.Now,
		live:     make(map[string]weak.Pointer[Node]),
		pinned:   make(map[string]*Node),
	}
	if g.ids == nil {
		g.ids = identity.UUIDSource{}
	}
	if g.types == nil {
		g.types = anyType{}
	}
	if g.policy == nil {
		g.policy = allowAll{}
	}
	if g.cache == nil {
		g.cache = cache.NewMemoryCache(0, 0)
	}
	if g.keyer == nil {
		g.keyer = cache.NewDefaultKeyer()
	}
	if g.logger == nil {
		g.logger = log.Default()
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

type anyType struct{}

func (anyType) Creatable(string) bool      { return true }
func (anyType) ViewTypes(string) []string { return nil }

type allowAll struct{}

func (allowAll) Decide(context.Context, Proposal) Decision { return Allow }

// Store returns the backing store.
func (g *Graph) Store() Store { return g.store }

// Types returns the type registry.
func (g *Graph) Types() TypeRegistry { return g.types }

// Logger returns the graph's logger.
func (g *Graph) Logger() *log.Logger { return g.logger }

// Now returns the graph clock's current time.
func (g *Graph) Now() time.Time { return g.now() }

// Create instantiates a new, unsaved node of typeID owned by owner.
// It fails with UNCREATABLE_TYPE when the registry refuses the type and with
// POLICY_DENIED when the policy gate vetoes the creation.
func (g *Graph) Create(ctx context.Context, typeID, owner string) (*Node, error) {
	if err := cerrors.ValidateTypeID(typeID); err != nil {
		return nil, err
	}
	if !g.types.Creatable(typeID) {
		return nil, cerrors.New(cerrors.ErrCodeUncreatableType, "type %q cannot be created", typeID)
	}
	if err := g.decide(ctx, Proposal{Action: ActionCreate, TypeID: typeID, Owner: owner}); err != nil {
		return nil, err
	}
	n := g.newNode(g.ids.NewID(), typeID)
	n.owner = owner
	n.creator = owner
	n.created = g.now().UTC()
	n.dirty = true
	n.overlay = true
	n.pending = []string{}
	n.viewLoaded = true
	n.viewState = make(map[string]PropertyBag)
	g.register(n)
	g.pin(n)
	return n, nil
}

// Lookup returns the node with id, loading it from the store if no live
// instance exists. Unknown ids yield a NOT_FOUND error.
func (g *Graph) Lookup(ctx context.Context, id string) (*Node, error) {
	if n := g.liveNode(id); n != nil {
		return n, nil
	}

	start := time.Now()
	rec, err := g.store.Load(ctx, id)
	observability.Store().OnLoad(ctx, id, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	n := g.newNode(rec.ID, rec.TypeID)
	n.hydrate(rec)

	// Another goroutine may have loaded the same id meanwhile.
	g.mu.Lock()
	if existing := g.liveLocked(id); existing != nil {
		g.mu.Unlock()
		return existing, nil
	}
	g.registerLocked(n)
	g.mu.Unlock()

	if rec.Delegate != "" && rec.Delegate != rec.ID {
		d, err := g.Lookup(ctx, rec.Delegate)
		if err != nil {
			g.logger.Warn("delegate unavailable", "node", id, "delegate", rec.Delegate, "err", err)
		} else {
			n.mu.Lock()
			n.delegate = d
			n.mu.Unlock()
		}
	}
	return n, nil
}

// List returns summaries of every stored node.
func (g *Graph) List(ctx context.Context) ([]Summary, error) {
	return g.store.List(ctx)
}

// Resident returns the number of node instances currently held by the arena,
// pinned or otherwise reachable.
func (g *Graph) Resident() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	count := 0
	for _, wp := range g.live {
		if wp.Value() != nil {
			count++
		}
	}
	return count
}

// Pinned returns the number of nodes held alive because they are dirty.
func (g *Graph) Pinned() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pinned)
}

func (g *Graph) newNode(id, typeID string) *Node {
	return &Node{graph: g, id: id, typeID: typeID}
}

func (g *Graph) decide(ctx context.Context, p Proposal) error {
	d := g.policy.Decide(ctx, p)
	if d.Allowed {
		return nil
	}
	subject := p.TypeID
	if p.Subject != nil {
		subject = p.Subject.id
	}
	g.logger.Debug("policy denied", "action", p.Action, "subject", subject, "message", d.Message)
	return cerrors.PolicyDenied(string(p.Action), d.Message)
}

func (g *Graph) register(n *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registerLocked(n)
}

func (g *Graph) registerLocked(n *Node) {
	g.live[n.id] = weak.Make(n)
	runtime.AddCleanup(n, g.forget, n.id)
}

// forget drops an arena slot whose node has been collected. The slot may
// have been reused for a newer instance, which is left alone.
func (g *Graph) forget(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if wp, ok := g.live[id]; ok && wp.Value() == nil {
		delete(g.live, id)
	}
}

func (g *Graph) liveNode(id string) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.liveLocked(id)
}

func (g *Graph) liveLocked(id string) *Node {
	wp, ok := g.live[id]
	if !ok {
		return nil
	}
	n := wp.Value()
	if n == nil {
		delete(g.live, id)
	}
	return n
}

func (g *Graph) pin(n *Node) {
	g.mu.Lock()
	g.pinned[n.id] = n
	g.mu.Unlock()
}

func (g *Graph) unpin(n *Node) {
	g.mu.Lock()
	if g.pinned[n.id] == n {
		delete(g.pinned, n.id)
	}
	g.mu.Unlock()
}
