package component

import (
	"context"
	"encoding/json"
	"slices"

	cerrors "github.com/matzehuels/compgraph/pkg/errors"
	"github.com/matzehuels/compgraph/pkg/observability"
)

const childKeyType = "children"

// ChildIDs returns the ordered ids of n's children: the uncommitted overlay
// when there is one, otherwise the committed list via the cache.
func (n *Node) ChildIDs(ctx context.Context) ([]string, error) {
	n.mu.RLock()
	if n.overlay {
		ids := slices.Clone(n.pending)
		n.mu.RUnlock()
		return ids, nil
	}
	version, persisted := n.version, n.persisted
	n.mu.RUnlock()

	if !persisted {
		return []string{}, nil
	}
	return n.graph.committedChildren(ctx, n.id, version)
}

// Children resolves ChildIDs to nodes. Ids that no longer resolve are
// skipped with a warning.
func (n *Node) Children(ctx context.Context) ([]*Node, error) {
	ids, err := n.ChildIDs(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		child, err := n.graph.Lookup(ctx, id)
		if cerrors.Is(err, cerrors.ErrCodeNotFound) {
			n.graph.logger.Warn("dangling child reference", "parent", n.id, "child", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, child)
	}
	return nodes, nil
}

// AddChildren inserts children into n's child list at index. An index that
// is negative or past the end appends. A child already present is moved:
// it is removed first and the insertion index shifts to account for it.
// Duplicate nodes in children collapse to their first occurrence.
func (n *Node) AddChildren(ctx context.Context, index int, children ...*Node) error {
	children = uniqueNodes(children)
	if len(children) == 0 {
		return nil
	}
	if err := n.graph.decide(ctx, Proposal{Action: ActionAddChildren, Subject: n, Children: children}); err != nil {
		return err
	}
	ids := nodeIDs(children)
	return n.mutateChildren(ctx, func(current []string) ([]string, error) {
		return insertMoving(current, index, ids), nil
	})
}

// RemoveChildren removes every occurrence of children from n's child list.
// Removing a node that is not a child is a no-op.
func (n *Node) RemoveChildren(ctx context.Context, children ...*Node) error {
	children = uniqueNodes(children)
	if len(children) == 0 {
		return nil
	}
	if err := n.graph.decide(ctx, Proposal{Action: ActionRemoveChildren, Subject: n, Children: children}); err != nil {
		return err
	}
	drop := make(map[string]bool, len(children))
	for _, c := range children {
		drop[c.id] = true
	}
	return n.mutateChildren(ctx, func(current []string) ([]string, error) {
		next := slices.DeleteFunc(slices.Clone(current), func(id string) bool { return drop[id] })
		if len(next) == len(current) {
			return nil, nil
		}
		return next, nil
	})
}

// Reorder replaces n's child order. order must be a permutation of the
// current children; anything else fails with INVALID_INPUT.
func (n *Node) Reorder(ctx context.Context, order []*Node) error {
	if slices.Contains(order, nil) {
		return cerrors.New(cerrors.ErrCodeInvalidInput, "reorder of %s contains a nil node", n.id)
	}
	if err := n.graph.decide(ctx, Proposal{Action: ActionReorder, Subject: n, Children: order}); err != nil {
		return err
	}
	ids := nodeIDs(order)
	return n.mutateChildren(ctx, func(current []string) ([]string, error) {
		if !samePermutation(current, ids) {
			return nil, cerrors.New(cerrors.ErrCodeInvalidInput, "reorder of %s is not a permutation of its children", n.id)
		}
		if slices.Equal(current, ids) {
			return nil, nil
		}
		return ids, nil
	})
}

// EvictChildren drops n's committed child list from the cache. The next
// read reloads it from the store.
func (n *Node) EvictChildren(ctx context.Context) error {
	n.mu.RLock()
	key := n.graph.keyer.ChildRefsKey(n.id, n.version)
	n.mu.RUnlock()
	return n.graph.cache.Delete(ctx, key)
}

// mutateChildren applies fn to the current child list under n's lock and
// installs the result as the overlay. A nil result means nothing changed.
func (n *Node) mutateChildren(ctx context.Context, fn func([]string) ([]string, error)) error {
	n.mu.Lock()
	current := n.pending
	if !n.overlay && n.persisted {
		ids, err := n.graph.committedChildren(ctx, n.id, n.version)
		if err != nil {
			n.mu.Unlock()
			return err
		}
		current = ids
	}
	next, err := fn(current)
	if err != nil || next == nil {
		n.mu.Unlock()
		return err
	}
	n.overlay = true
	n.pending = next
	n.dirty = true
	n.gen++
	n.mu.Unlock()

	n.enroll()
	return nil
}

// committedChildren returns the committed child list of id at version,
// consulting the cache before the store.
func (g *Graph) committedChildren(ctx context.Context, id string, version uint32) ([]string, error) {
	key := g.keyer.ChildRefsKey(id, version)
	if data, hit, err := g.cache.Get(ctx, key); err == nil && hit {
		var ids []string
		if err := json.Unmarshal(data, &ids); err == nil {
			observability.Cache().OnCacheHit(ctx, childKeyType)
			return ids, nil
		}
		_ = g.cache.Delete(ctx, key)
	}
	observability.Cache().OnCacheMiss(ctx, childKeyType)

	ids, stored, err := g.store.Children(ctx, id)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	if data, err := json.Marshal(ids); err == nil {
		storedKey := g.keyer.ChildRefsKey(id, stored)
		if err := g.cache.Set(ctx, storedKey, data, g.childTTL); err != nil {
			g.logger.Debug("child cache write failed", "node", id, "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, childKeyType, len(data))
		}
	}
	return ids, nil
}

func (g *Graph) cacheChildren(ctx context.Context, id string, version uint32, ids []string) {
	data, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := g.cache.Set(ctx, g.keyer.ChildRefsKey(id, version), data, g.childTTL); err == nil {
		observability.Cache().OnCacheSet(ctx, childKeyType, len(data))
	}
}

func insertMoving(current []string, index int, ids []string) []string {
	if index < 0 || index > len(current) {
		index = len(current)
	}
	moving := make(map[string]bool, len(ids))
	for _, id := range ids {
		moving[id] = true
	}
	out := make([]string, 0, len(current)+len(ids))
	at := index
	for i, id := range current {
		if moving[id] {
			if i < index {
				at--
			}
			continue
		}
		out = append(out, id)
	}
	return slices.Insert(out, at, ids...)
}

func samePermutation(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, id := range a {
		counts[id]++
	}
	for _, id := range b {
		counts[id]--
		if counts[id] < 0 {
			return false
		}
	}
	return true
}

func uniqueNodes(nodes []*Node) []*Node {
	seen := make(map[string]bool, len(nodes))
	out := make([]*Node, 0, len(nodes))
	for _, c := range nodes {
		if c == nil || seen[c.id] {
			continue
		}
		seen[c.id] = true
		out = append(out, c)
	}
	return out
}

func nodeIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, c := range nodes {
		ids[i] = c.id
	}
	return ids
}
