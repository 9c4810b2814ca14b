package component

import (
	"context"
	"maps"
	"slices"
	"time"
)

// PropertyBag is the persisted state of one view kind, e.g. the
// "provenance" view of an import container.
type PropertyBag map[string]string

// Clone returns a deep copy of the bag.
func (b PropertyBag) Clone() PropertyBag {
	if b == nil {
		return nil
	}
	return maps.Clone(b)
}

func cloneViewState(in map[string]PropertyBag) map[string]PropertyBag {
	out := make(map[string]PropertyBag, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}

// Record is the committed form of a node as a [Store] sees it.
type Record struct {
	ID          string                 `json:"id" bson:"_id"`
	TypeID      string                 `json:"type" bson:"type"`
	DisplayName string                 `json:"name,omitempty" bson:"name,omitempty"`
	Owner       string                 `json:"owner,omitempty" bson:"owner,omitempty"`
	Creator     string                 `json:"creator,omitempty" bson:"creator,omitempty"`
	Created     time.Time              `json:"created" bson:"created"`
	ExternalKey string                 `json:"external_key,omitempty" bson:"external_key,omitempty"`
	Delegate    string                 `json:"delegate,omitempty" bson:"delegate,omitempty"`
	Version     uint32                 `json:"version" bson:"version"`
	Children    []string               `json:"children" bson:"children"`
	ViewState   map[string]PropertyBag `json:"state,omitempty" bson:"state,omitempty"`
}

// SameContent reports whether r and other carry the same node state,
// ignoring Version.
func (r *Record) SameContent(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.ID != other.ID || r.TypeID != other.TypeID || r.DisplayName != other.DisplayName ||
		r.Owner != other.Owner || r.Creator != other.Creator || r.ExternalKey != other.ExternalKey ||
		r.Delegate != other.Delegate || !r.Created.Equal(other.Created) {
		return false
	}
	if !slices.Equal(r.Children, other.Children) {
		return false
	}
	if len(r.ViewState) != len(other.ViewState) {
		return false
	}
	for k, bag := range r.ViewState {
		if !maps.Equal(bag, other.ViewState[k]) {
			return false
		}
	}
	return true
}

// NextVersion returns the version a store assigns when committing rec over
// prev. New records start at 1; an unchanged record keeps its version; any
// other change bumps it by one.
func NextVersion(prev, rec *Record) uint32 {
	if prev == nil {
		return 1
	}
	if prev.SameContent(rec) {
		return prev.Version
	}
	return prev.Version + 1
}

// Summary is a listing entry returned by [Store.List].
type Summary struct {
	ID          string
	TypeID      string
	DisplayName string
	Version     uint32
	ChildCount  int
}

// Store persists node records and their ordered child-reference lists.
//
// Load and Children return an error with code NOT_FOUND for unknown ids and
// PERSISTENCE_ERROR for backend failures. Implementations must be safe for
// concurrent use.
type Store interface {
	// Load returns the committed record for id.
	Load(ctx context.Context, id string) (*Record, error)

	// Children returns the committed child list of id together with the
	// version it belongs to.
	Children(ctx context.Context, id string) ([]string, uint32, error)

	// Commit writes rec and returns the version now stored (see NextVersion).
	Commit(ctx context.Context, rec *Record) (uint32, error)

	// List returns a summary of every stored node, ordered by id.
	List(ctx context.Context) ([]Summary, error)

	// Close releases backend resources.
	Close() error
}

// IdentitySource produces fresh node ids.
type IdentitySource interface {
	NewID() string
}

// TypeRegistry reports which node types exist and what they can persist.
type TypeRegistry interface {
	// Creatable reports whether new nodes of typeID may be instantiated.
	Creatable(typeID string) bool

	// ViewTypes lists the view kinds whose state typeID persists.
	// A nil result means the type has no persistent view state.
	ViewTypes(typeID string) []string
}

// Action names a proposal kind a PolicyGate is asked about.
type Action string

const (
	ActionCreate         Action = "create"
	ActionAddChildren    Action = "add_children"
	ActionRemoveChildren Action = "remove_children"
	ActionReorder        Action = "reorder"
)

// Proposal describes a change awaiting a policy decision.
// Subject is nil for ActionCreate; TypeID is set for creations.
type Proposal struct {
	Action   Action
	Subject  *Node
	Children []*Node
	TypeID   string
	Owner    string
}

// Decision is a PolicyGate verdict.
type Decision struct {
	Allowed bool
	Message string
}

// Allow is the decision that lets a proposal through.
var Allow = Decision{Allowed: true}

// Deny returns a refusing decision with a message for the caller.
func Deny(message string) Decision {
	return Decision{Message: message}
}

// PolicyGate decides whether a proposal may proceed.
type PolicyGate interface {
	Decide(ctx context.Context, p Proposal) Decision
}
