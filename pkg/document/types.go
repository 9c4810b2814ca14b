package document

import (
	"time"
)

// Format is the marker every document carries.
const Format = "compgraph"

// Supported document versions.
const (
	MinVersion     = 1
	MaxVersion     = 1
	CurrentVersion = MaxVersion
)

// Document is the top-level envelope.
type Document struct {
	Format  string `json:"format" yaml:"format" bson:"format"`
	Version int    `json:"version" yaml:"version" bson:"version"`
	Export  Export `json:"export" yaml:"export" bson:"export"`
}

// Export is the payload of one export run.
type Export struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp" bson:"timestamp"`
	Exporter  string    `json:"exporter,omitempty" yaml:"exporter,omitempty" bson:"exporter,omitempty"`
	Nodes     []Element `json:"nodes" yaml:"nodes" bson:"nodes"`
}

// Element is a full node or a back-reference to one.
type Element struct {
	// Ref is set, and nothing else is, for a back-reference.
	Ref string `json:"ref,omitempty" yaml:"ref,omitempty" bson:"ref,omitempty"`

	ID          string                       `json:"id,omitempty" yaml:"id,omitempty" bson:"id,omitempty"`
	Type        string                       `json:"type,omitempty" yaml:"type,omitempty" bson:"type,omitempty"`
	Name        string                       `json:"name,omitempty" yaml:"name,omitempty" bson:"name,omitempty"`
	Owner       string                       `json:"owner,omitempty" yaml:"owner,omitempty" bson:"owner,omitempty"`
	Creator     string                       `json:"creator,omitempty" yaml:"creator,omitempty" bson:"creator,omitempty"`
	Created     *time.Time                   `json:"created,omitempty" yaml:"created,omitempty" bson:"created,omitempty"`
	ExternalKey string                       `json:"external_key,omitempty" yaml:"external_key,omitempty" bson:"external_key,omitempty"`
	State       map[string]map[string]string `json:"state,omitempty" yaml:"state,omitempty" bson:"state,omitempty"`
	Children    []Element                    `json:"children,omitempty" yaml:"children,omitempty" bson:"children,omitempty"`
}

// NewRef returns a back-reference element.
func NewRef(id string) Element { return Element{Ref: id} }

// IsRef reports whether e is a back-reference.
func (e *Element) IsRef() bool { return e.Ref != "" }

// SourceID returns the document-local id e names, full or referenced.
func (e *Element) SourceID() string {
	if e.Ref != "" {
		return e.Ref
	}
	return e.ID
}

// New returns an empty current-version document stamped with ts.
func New(ts time.Time, exporter string) *Document {
	return &Document{
		Format:  Format,
		Version: CurrentVersion,
		Export:  Export{Timestamp: ts.UTC(), Exporter: exporter, Nodes: []Element{}},
	}
}

// Index maps every full element's id to the element, in document order.
// Call it on validated documents, where ids are unique.
func (d *Document) Index() map[string]*Element {
	idx := make(map[string]*Element)
	var visit func(list []Element)
	visit = func(list []Element) {
		for i := range list {
			e := &list[i]
			if e.IsRef() {
				continue
			}
			if _, ok := idx[e.ID]; !ok {
				idx[e.ID] = e
			}
			visit(e.Children)
		}
	}
	visit(d.Export.Nodes)
	return idx
}

// Count returns the number of full and reference elements in d.
func (d *Document) Count() (full, refs int) {
	var visit func(list []Element)
	visit = func(list []Element) {
		for i := range list {
			if list[i].IsRef() {
				refs++
				continue
			}
			full++
			visit(list[i].Children)
		}
	}
	visit(d.Export.Nodes)
	return full, refs
}
