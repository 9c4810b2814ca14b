package component

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	cerrors "github.com/matzehuels/compgraph/pkg/errors"
	"github.com/matzehuels/compgraph/pkg/observability"
)

// Save commits n's work unit: the unit head and every member with pending
// changes. Saving a clean unit does nothing, so calling Save repeatedly is
// safe. Saves of the same unit are serialized.
//
// A member that changes while its commit is in flight stays dirty and is
// committed again by the next save.
func (n *Node) Save(ctx context.Context) error {
	u := n.unit()
	u.saveMu.Lock()
	defer u.saveMu.Unlock()

	u.mu.RLock()
	members := make([]*Node, 0, len(u.members))
	for _, m := range u.members {
		members = append(members, m)
	}
	u.mu.RUnlock()
	slices.SortFunc(members, func(a, b *Node) int { return cmp.Compare(a.id, b.id) })

	var errs []error
	if err := u.commit(ctx); err != nil {
		errs = append(errs, err)
	}
	var clean []string
	for _, m := range members {
		if err := m.commit(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		if !m.localDirty() {
			clean = append(clean, m.id)
		}
	}

	if len(clean) > 0 {
		u.mu.Lock()
		for _, id := range clean {
			delete(u.members, id)
		}
		u.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (n *Node) localDirty() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dirty
}

// commit writes n's own state if it is dirty.
func (n *Node) commit(ctx context.Context) error {
	if !n.localDirty() {
		return nil
	}
	if err := n.loadViewState(ctx); err != nil {
		return err
	}

	// Without an overlay the store's list is authoritative; the cache is
	// only checked against it.
	n.mu.RLock()
	children := n.pending
	if !n.overlay && n.persisted {
		ids, _, err := n.graph.store.Children(ctx, n.id)
		if err != nil {
			n.mu.RUnlock()
			return err
		}
		children = ids
	}
	rec := n.snapshotLocked(children)
	gen := n.gen
	n.mu.RUnlock()

	start := time.Now()
	version, err := n.graph.store.Commit(ctx, rec)
	observability.Store().OnCommit(ctx, n.id, version, time.Since(start), err)
	if err != nil {
		if cerrors.GetCode(err) == "" {
			err = cerrors.Wrap(cerrors.ErrCodePersistence, err, "commit %s", n.id)
		}
		return err
	}

	n.mu.Lock()
	n.version = version
	n.persisted = true
	settled := n.gen == gen
	if settled {
		n.dirty = false
		n.overlay = false
		n.pending = nil
	}
	n.mu.Unlock()

	if version == rec.Version {
		n.graph.verifyChildren(ctx, n.id, version, rec.Children)
	}
	n.graph.cacheChildren(ctx, n.id, version, rec.Children)
	if settled {
		n.graph.unpin(n)
	}
	n.graph.logger.Debug("committed", "node", n.id, "version", version)
	return nil
}

// verifyChildren checks a cached list against a commit the store reported
// as unchanged. A mismatch means the cache holds state the store never had.
func (g *Graph) verifyChildren(ctx context.Context, id string, version uint32, committed []string) {
	data, hit, err := g.cache.Get(ctx, g.keyer.ChildRefsKey(id, version))
	if err != nil || !hit {
		return
	}
	var cached []string
	if json.Unmarshal(data, &cached) != nil {
		return
	}
	if !slices.Equal(cached, committed) {
		panic(fmt.Sprintf("component: cached children of %s@%d diverge from committed state", id, version))
	}
}
