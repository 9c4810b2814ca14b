package identity

// Visited records ids a traversal has already handled.
// The zero value is not usable; use NewVisited.
type Visited struct {
	seen  map[string]struct{}
	order []string
}

// NewVisited creates an empty visited set.
func NewVisited() *Visited {
	return &Visited{seen: make(map[string]struct{})}
}

// Visit marks id as visited. It returns true the first time an id is seen
// and false on every repeat, which is the cycle/shared-reference case.
func (v *Visited) Visit(id string) bool {
	if _, ok := v.seen[id]; ok {
		return false
	}
	v.seen[id] = struct{}{}
	v.order = append(v.order, id)
	return true
}

// Has reports whether id was visited.
func (v *Visited) Has(id string) bool {
	_, ok := v.seen[id]
	return ok
}

// Len returns the number of distinct ids visited.
func (v *Visited) Len() int { return len(v.seen) }

// Order returns the ids in first-visit order.
func (v *Visited) Order() []string {
	return append([]string(nil), v.order...)
}

// Remap maps document-local source ids to reconstructed values.
// One Remap lives for a whole import call, so a source id seen in an earlier
// file resolves to the node built for it there.
type Remap[V any] struct {
	entries map[string]V
	order   []string
}

// NewRemap creates an empty remap table.
func NewRemap[V any]() *Remap[V] {
	return &Remap[V]{entries: make(map[string]V)}
}

// Lookup returns the value bound to sourceID.
func (r *Remap[V]) Lookup(sourceID string) (V, bool) {
	v, ok := r.entries[sourceID]
	return v, ok
}

// Bind associates sourceID with v. Binding an id twice is a programming
// error: the importer must check Lookup first, so Bind panics.
func (r *Remap[V]) Bind(sourceID string, v V) {
	if _, ok := r.entries[sourceID]; ok {
		panic("identity: source id bound twice: " + sourceID)
	}
	r.entries[sourceID] = v
	r.order = append(r.order, sourceID)
}

// Len returns the number of bound ids.
func (r *Remap[V]) Len() int { return len(r.entries) }

// SourceIDs returns the bound ids in binding order.
func (r *Remap[V]) SourceIDs() []string {
	return append([]string(nil), r.order...)
}

// State is the reconstruction state of one source id during an import.
type State int

const (
	// Unseen ids have not been encountered yet.
	Unseen State = iota
	// InProgress ids have a live node but their children are still being built.
	// A reference reaching an InProgress id links to that node as-is.
	InProgress
	// Attached ids are fully built. Terminal for the session.
	Attached
)

func (s State) String() string {
	switch s {
	case Unseen:
		return "unseen"
	case InProgress:
		return "in-progress"
	case Attached:
		return "attached"
	default:
		return "unknown"
	}
}

// Tracker holds the reconstruction state of every source id in a session.
type Tracker struct {
	states map[string]State
}

// NewTracker creates a tracker where every id starts Unseen.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]State)}
}

// State returns the current state of id.
func (t *Tracker) State(id string) State {
	return t.states[id]
}

// Begin moves id from Unseen to InProgress.
// It returns false, leaving the state unchanged, if id was already seen.
func (t *Tracker) Begin(id string) bool {
	if t.states[id] != Unseen {
		return false
	}
	t.states[id] = InProgress
	return true
}

// Finish moves id from InProgress to Attached.
// It returns false if id was not InProgress.
func (t *Tracker) Finish(id string) bool {
	if t.states[id] != InProgress {
		return false
	}
	t.states[id] = Attached
	return true
}

// InProgress returns the number of ids currently under construction.
func (t *Tracker) InProgress() int {
	n := 0
	for _, s := range t.states {
		if s == InProgress {
			n++
		}
	}
	return n
}

// Creatable answers whether a type can be instantiated.
type Creatable interface {
	Creatable(typeID string) bool
}

// Resolve returns typeID when it is creatable, otherwise placeholder.
// The second result reports whether a substitution happened.
func Resolve(types Creatable, typeID, placeholder string) (string, bool) {
	if types != nil && types.Creatable(typeID) {
		return typeID, false
	}
	return placeholder, true
}
