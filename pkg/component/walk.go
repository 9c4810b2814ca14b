package component

import (
	"context"
	"errors"
	"slices"

	"github.com/matzehuels/compgraph/pkg/identity"
)

// WalkFunc is called once per reachable node. Returning descend=false skips
// the node's children; a non-nil error stops the walk.
type WalkFunc func(n *Node) (descend bool, err error)

// Walk visits every node reachable from roots exactly once, depth first, in
// child order. Shared children and cycles are visited on first encounter
// only, so Walk terminates on any graph.
func Walk(ctx context.Context, roots []*Node, fn WalkFunc) error {
	visited := identity.NewVisited()
	stack := slices.Clone(roots)
	slices.Reverse(stack)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil || !visited.Visit(n.id) {
			continue
		}
		descend, err := fn(n)
		if err != nil {
			return err
		}
		if !descend {
			continue
		}
		children, err := n.Children(ctx)
		if err != nil {
			return err
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return nil
}

// SaveAll saves every node reachable from roots that within accepts
// (a nil within accepts everything). The walk does not descend past nodes
// within rejects. Failed saves do not stop the walk; their errors are
// joined into the result.
func SaveAll(ctx context.Context, roots []*Node, within func(*Node) bool) (int, error) {
	saved := 0
	var errs []error
	err := Walk(ctx, roots, func(n *Node) (bool, error) {
		if within != nil && !within(n) {
			return false, nil
		}
		if !n.IsDirty() {
			return true, nil
		}
		if err := n.Save(ctx); err != nil {
			errs = append(errs, err)
			return true, nil
		}
		saved++
		return true, nil
	})
	if err != nil {
		errs = append(errs, err)
	}
	return saved, errors.Join(errs...)
}
