// Package policy provides [component.PolicyGate] implementations.
//
// [Allow] lets every proposal through, [Func] adapts a plain function, and
// [Rules] evaluates CEL expressions from configuration. Gates compose with
// [Chain]: the first refusal wins.
package policy

import (
	"context"

	"github.com/matzehuels/compgraph/pkg/component"
)

// Allow returns a gate that accepts every proposal.
func Allow() component.PolicyGate {
	return Func(func(context.Context, component.Proposal) component.Decision {
		return component.Allow
	})
}

// Func adapts a function to the PolicyGate interface.
type Func func(ctx context.Context, p component.Proposal) component.Decision

// Decide calls f.
func (f Func) Decide(ctx context.Context, p component.Proposal) component.Decision {
	return f(ctx, p)
}

// Chain consults gates in order and returns the first refusal.
func Chain(gates ...component.PolicyGate) component.PolicyGate {
	return Func(func(ctx context.Context, p component.Proposal) component.Decision {
		for _, g := range gates {
			if g == nil {
				continue
			}
			if d := g.Decide(ctx, p); !d.Allowed {
				return d
			}
		}
		return component.Allow
	})
}
