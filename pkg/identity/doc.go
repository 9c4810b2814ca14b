// Package identity provides node identifiers and the bookkeeping that keeps
// graph traversals finite.
//
// # Identifier Sources
//
// [UUIDSource] hands out random version 4 UUIDs and is what production code
// uses. [Sequence] hands out "prefix-1", "prefix-2", ... and exists so tests
// and examples produce stable output. Both are passed explicitly to the
// component runtime; there is no package-level counter.
//
// # Termination Guards
//
// Both the exporter and the importer walk graphs that may contain cycles.
// They share three helpers:
//
//   - [Visited]: a set of ids already emitted or saved; the first Visit of an
//     id returns true, every later one false.
//   - [Remap]: maps a document-local id to the live value reconstructed for
//     it. It is scoped to one import call, across all of its files.
//   - [Tracker]: the per-node reconstruction state machine
//     Unseen -> InProgress -> Attached.
//
// [Resolve] wraps the "is this type creatable" question and substitutes a
// placeholder type when the answer is no.
package identity
