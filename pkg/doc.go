// Package pkg holds the compgraph libraries.
//
// # Overview
//
// compgraph keeps hierarchical components that refer to their children by
// id. A component may appear under several parents and the references may
// form cycles. The libraries are organized as:
//
//  1. [component] - the live graph: nodes, child lists, work units, saves
//  2. [store] - persistence backends (memory, sqlite, redis, mongo)
//  3. [io] - export to portable documents and import with id remapping
//  4. [document] - the document model and its JSON/YAML codecs
//  5. [identity] - visited sets, remap tables, traversal state, id sources
//  6. [registry], [policy] - type catalog and CEL mutation rules
//  7. [cache], [observability], [dot] - supporting infrastructure
//
// # Data flow
//
//	component.Graph  ──export──▶  document.Document  ──encode──▶  .json/.yaml
//	        ▲                                                         │
//	        └───────────────import (remap, provenance)◀───────────────┘
//
// # Quick Start
//
//	g := component.New(memory.New(), component.Options{Types: registry.New()})
//	root, _ := g.Create(ctx, registry.Folder, "alice")
//	note, _ := g.Create(ctx, registry.Note, "alice")
//	_ = root.AddChildren(ctx, -1, note)
//	_ = note.AddChildren(ctx, -1, root) // cycles are fine
//	_, _ = component.SaveAll(ctx, []*component.Node{root}, nil)
//
//	_ = io.NewExporter(g).ExportFile(ctx, []*component.Node{root}, "out.json")
//	report := io.NewImporter(g, io.ImportOptions{}).Import(ctx, []string{"out.json"}, "", root)
package pkg
