package dot

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/compgraph/pkg/component"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
	"github.com/matzehuels/compgraph/pkg/registry"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds id, type and owner lines to each label.
	Detailed bool
}

type edge struct{ from, to string }

// ToDOT converts the subgraph reachable from roots to DOT source.
// Each node appears once; children that were already emitted are linked,
// not repeated.
func ToDOT(ctx context.Context, roots []*component.Node, opts Options) (string, error) {
	var nodes []*component.Node
	var edges []edge
	err := component.Walk(ctx, roots, func(n *component.Node) (bool, error) {
		nodes = append(nodes, n)
		ids, err := n.ChildIDs(ctx)
		if err != nil {
			return false, err
		}
		for _, id := range ids {
			edges = append(edges, edge{from: n.ID(), to: id})
		}
		return true, nil
	})
	if err != nil {
		return "", cerrors.Wrap(cerrors.ErrCodePersistence, err, "walk graph")
	}

	emitted := make(map[string]bool, len(nodes))
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range nodes {
		emitted[n.ID()] = true
		attrs := fmtAttrs(n, fmtLabel(n, opts.Detailed))
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID(), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range edges {
		// Dangling references have no node to point at.
		if !emitted[e.to] {
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.from, e.to)
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

func fmtLabel(n *component.Node, detailed bool) string {
	if !detailed {
		return n.DisplayName()
	}
	parts := []string{n.DisplayName(), "id: " + n.ID(), "type: " + n.TypeID()}
	if owner := n.Owner(); owner != "" {
		parts = append(parts, "owner: "+owner)
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(n *component.Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch n.TypeID() {
	case registry.ImportSession, registry.ImportFile, registry.ExportContainer:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
	case registry.Generic:
		attrs = append(attrs, "fillcolor=lightyellow")
	}
	return attrs
}

// RenderSVG lays out DOT source and returns the SVG.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeFormat, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeIO, err, "render")
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the fixed pt size graphviz emits with a
// scalable viewBox so the SVG fits its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
