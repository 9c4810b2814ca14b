// Package registry holds the catalog of node types.
//
// A [Registry] answers the two questions the graph runtime asks about a
// type: can new nodes of it be created, and which view kinds does it
// persist. Built-in types cover the generic placeholder and the provenance
// containers the importer creates; additional types are loaded from a TOML
// catalog (see [LoadCatalog]).
package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	cerrors "github.com/matzehuels/compgraph/pkg/errors"
)

// Built-in type ids.
const (
	// Generic is the placeholder substituted for types that cannot be created.
	Generic = "generic"

	Folder = "folder"
	Note   = "note"

	// ExportContainer groups what was exported together.
	ExportContainer = "provenance.export"
	// ImportSession is the "imported on <timestamp>" container of one import call.
	ImportSession = "provenance.import"
	// ImportFile wraps the roots read from one document.
	ImportFile = "provenance.file"

	// ProvenanceView is the view kind that records where a file container came from.
	ProvenanceView = "provenance"
)

// Type describes one node type.
type Type struct {
	ID        string   `toml:"id"`
	Label     string   `toml:"label"`
	Creatable bool     `toml:"creatable"`
	ViewTypes []string `toml:"views"`
}

// Registry is a concurrency-safe set of types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// New returns a registry holding the built-in types.
func New() *Registry {
	r := &Registry{types: make(map[string]Type)}
	for _, t := range Builtins() {
		r.types[t.ID] = t
	}
	return r
}

// Builtins returns the types every registry starts with.
func Builtins() []Type {
	return []Type{
		{ID: Generic, Label: "Generic component", Creatable: true},
		{ID: Folder, Label: "Folder", Creatable: true},
		{ID: Note, Label: "Note", Creatable: true, ViewTypes: []string{"text"}},
		{ID: ExportContainer, Label: "Export", Creatable: true},
		{ID: ImportSession, Label: "Import session", Creatable: true},
		{ID: ImportFile, Label: "Imported file", Creatable: true, ViewTypes: []string{ProvenanceView}},
	}
}

// Register adds or replaces a type.
func (r *Registry) Register(t Type) error {
	if err := cerrors.ValidateTypeID(t.ID); err != nil {
		return err
	}
	t.ViewTypes = slices.Clone(t.ViewTypes)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.ID] = t
	return nil
}

// Lookup returns the type with id.
func (r *Registry) Lookup(id string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[id]
	return t, ok
}

// Creatable reports whether id is known and creatable.
func (r *Registry) Creatable(id string) bool {
	t, ok := r.Lookup(id)
	return ok && t.Creatable
}

// ViewTypes returns the view kinds persisted by id.
func (r *Registry) ViewTypes(id string) []string {
	t, ok := r.Lookup(id)
	if !ok || len(t.ViewTypes) == 0 {
		return nil
	}
	return slices.Clone(t.ViewTypes)
}

// List returns all types ordered by id.
func (r *Registry) List() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Type) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// String renders the type for listings.
func (t Type) String() string {
	label := t.Label
	if label == "" {
		label = t.ID
	}
	if !t.Creatable {
		return fmt.Sprintf("%s (%s, not creatable)", t.ID, label)
	}
	return fmt.Sprintf("%s (%s)", t.ID, label)
}
