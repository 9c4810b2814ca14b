// Package io exports component graphs to documents and imports them back.
//
// # Overview
//
// An [Exporter] serializes the subgraph reachable from a set of roots into a
// [document.Document]. An [Importer] reconstructs nodes from one or more
// documents into a live [component.Graph], wrapping what it built in
// provenance containers.
//
// Both directions terminate on cyclic graphs. Termination comes from identity
// bookkeeping, not from recursion limits: the exporter keeps a visited set,
// the importer a session-wide remap table plus a per-node state tracker (see
// package identity).
//
// # Export
//
// Each node is emitted in full the first time it is reached, depth first in
// child order. Every later occurrence, whether a shared child or the edge that
// closes a cycle, is a back-reference carrying only the id:
//
//	exp := io.NewExporter(g)
//	err := exp.ExportFile(ctx, []*component.Node{root}, "backup.json")
//
// View state is emitted only for types whose registry entry declares view
// kinds; other nodes carry structure only. Write failures are IO_ERROR, store
// failures PERSISTENCE_ERROR.
//
// [Exporter.ExportFile] writes the target in place. An interrupted export
// leaves a partial file; replacing an existing file atomically is up to the
// caller.
//
// # Import
//
// [Importer.Import] never fails as a whole. Each file is parsed and rebuilt
// independently and the outcome is collected in a [Report]:
//
//	imp := io.NewImporter(g, io.ImportOptions{})
//	report := imp.Import(ctx, []string{"a.json", "b.json"}, "alice", target)
//	for _, f := range report.Files {
//	    fmt.Println(f.File, f.Status)
//	}
//
// A file that is missing, malformed, or of an unsupported version contributes
// nothing. Within a readable file, individual nodes degrade instead of failing
// the file: an uncreatable type is replaced by the generic placeholder, a
// policy veto skips the subtree, and a dangling reference is dropped. Each of
// these is recorded as a warning.
//
// Source ids are remapped once per Import call, so a node that appears in
// several files (or several times in one) is built once and shared.
//
// The nodes built from one file are wrapped in a file container named after
// the file. All file containers of one call go under a single
// "imported on <timestamp>" session container, attached as the last child of
// the target. The session container is created only if at least one file was
// readable.
//
// Every touched node, reused ones included, is marked dirty and saved with a
// cycle-safe walk unless [ImportOptions.SkipSave] is set. Cancelling the
// context stops the import between files and may leave a partially attached
// subgraph.
package io
