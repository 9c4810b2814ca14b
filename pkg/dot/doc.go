// Package dot renders component subgraphs as Graphviz node-link diagrams.
//
// [ToDOT] walks the subgraph reachable from a set of roots and emits DOT
// source with one node per component and one edge per child reference,
// including the edges that close cycles. [RenderSVG] lays the source out
// in-process with [github.com/goccy/go-graphviz]:
//
//	src, err := dot.ToDOT(ctx, roots, dot.Options{})
//	svg, err := dot.RenderSVG(ctx, src)
//
// Provenance containers are drawn dashed so imported content stands out from
// the containers that hold it.
package dot
