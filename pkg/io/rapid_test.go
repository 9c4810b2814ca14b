package io

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/matzehuels/compgraph/pkg/component"
	"github.com/matzehuels/compgraph/pkg/registry"
)

// shape renders the subtree under n by content, ignoring ids.
func shape(ctx context.Context, t *rapid.T, n *component.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s", n.TypeID(), n.Name())
	state, err := n.ViewState(ctx, "text")
	if err != nil {
		t.Fatal(err)
	}
	if body, ok := state["body"]; ok {
		fmt.Fprintf(&b, "[%s]", body)
	}
	children, err := n.Children(ctx)
	if err != nil {
		t.Fatal(err)
	}
	parts := make([]string, len(children))
	for i, c := range children {
		parts[i] = shape(ctx, t, c)
	}
	fmt.Fprintf(&b, "(%s)", strings.Join(parts, ","))
	return b.String()
}

// TestRoundTripAcyclic exports random trees and imports them into a fresh
// graph; the imported content must match the original exactly.
func TestRoundTripAcyclic(t *testing.T) {
	dir := t.TempDir()
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		src := newEnv(dir, "s", sourceTime, nil)

		count := 0
		var grow func(depth int) *component.Node
		grow = func(depth int) *component.Node {
			count++
			typeID := rapid.SampledFrom([]string{registry.Folder, registry.Note}).Draw(t, "type")
			n := src.create(t, typeID, rapid.StringMatching(`[a-z]{0,6}`).Draw(t, "name"))
			if typeID == registry.Note {
				body := rapid.StringMatching(`[a-z ]{1,12}`).Draw(t, "body")
				if err := n.SetViewState(ctx, "text", component.PropertyBag{"body": body}); err != nil {
					t.Fatal(err)
				}
			}
			if depth < 3 {
				for range rapid.IntRange(0, 3).Draw(t, "children") {
					link(t, n, grow(depth+1))
				}
			}
			return n
		}
		roots := make([]*component.Node, rapid.IntRange(1, 3).Draw(t, "roots"))
		for i := range roots {
			roots[i] = grow(0)
		}
		if _, err := component.SaveAll(ctx, roots, nil); err != nil {
			t.Fatal(err)
		}

		ext := rapid.SampledFrom([]string{".json", ".yaml"}).Draw(t, "ext")
		path := filepath.Join(dir, fmt.Sprintf("tree-%d%s", count, ext))
		if err := NewExporter(src.g).ExportFile(ctx, roots, path); err != nil {
			t.Fatal(err)
		}

		dst := newEnv(dir, "d", importTime, nil)
		target := dst.create(t, registry.Folder, "target")
		report := NewImporter(dst.g, ImportOptions{}).Import(ctx, []string{path}, "", target)
		if report.NodesCreated != count || report.CycleRefs != 0 || len(report.Warnings) != 0 || len(report.Errors) != 0 {
			t.Fatalf("report: created=%d want %d cycles=%d warnings=%v errors=%v",
				report.NodesCreated, count, report.CycleRefs, report.Warnings, report.Errors)
		}

		imported := importedRoots(t, target)
		want := make([]string, len(roots))
		for i, r := range roots {
			want[i] = shape(ctx, t, r)
		}
		got := make([]string, len(imported))
		for i, r := range imported {
			got[i] = shape(ctx, t, r)
		}
		if !slices.Equal(got, want) {
			t.Fatalf("round trip mismatch:\n got %v\nwant %v", got, want)
		}
		// content nodes, file container, session container and target.
		if n := dst.store.Len(); n != count+3 {
			t.Fatalf("store holds %d records, want %d", n, count+3)
		}
	})
}
