// Package document defines the interchange format for exported component graphs.
//
// A document is a versioned envelope around a list of top-level elements:
//
//	{
//	  "format": "compgraph",
//	  "version": 1,
//	  "export": {
//	    "timestamp": "2024-05-01T12:00:00Z",
//	    "exporter": "compgraph 0.3.0",
//	    "nodes": [
//	      {"id": "a", "type": "folder", "children": [
//	        {"id": "b", "type": "note", "children": [{"ref": "a"}]}
//	      ]}
//	    ]
//	  }
//	}
//
// Each element is either a full node (id, type, scalar fields, optional view
// state and children) or a back-reference {"ref": id} to a node serialized
// elsewhere in the same document. The first occurrence of a node in document
// order is the full one; every later occurrence, including the edge that
// closes a cycle, is a reference.
//
// # Encodings
//
// Documents are JSON by default. Paths ending in .yaml or .yml use YAML with
// the same field names (see [EncodingForPath]).
//
// # Validation
//
// [Decode] and [ReadFile] reject malformed documents with FORMAT_ERROR,
// unsupported versions with VERSION_MISMATCH, and unreadable paths with
// MISSING_SOURCE. Dangling references are not a validation error; importers
// report them per element.
package document
