package component

import (
	"context"
	"slices"
)

// Clone creates a new, unsaved node with a fresh id that copies n's scalar
// fields and view state. The child list is copied by reference: the clone
// points at the same child nodes, it does not duplicate them.
func (n *Node) Clone(ctx context.Context) (*Node, error) {
	g := n.graph
	if err := g.decide(ctx, Proposal{Action: ActionCreate, TypeID: n.typeID, Owner: n.Owner()}); err != nil {
		return nil, err
	}
	if err := n.loadViewState(ctx); err != nil {
		return nil, err
	}
	children, err := n.ChildIDs(ctx)
	if err != nil {
		return nil, err
	}

	n.mu.RLock()
	c := g.newNode(g.ids.NewID(), n.typeID)
	c.displayName = n.displayName
	c.owner = n.owner
	c.creator = n.creator
	c.created = n.created
	c.externalKey = n.externalKey
	c.viewState = cloneViewState(n.viewState)
	n.mu.RUnlock()

	c.viewLoaded = true
	c.overlay = true
	c.pending = slices.Clone(children)
	c.dirty = true
	g.register(c)
	g.pin(c)
	return c, nil
}
