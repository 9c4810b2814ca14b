package io

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/compgraph/pkg/buildinfo"
	"github.com/matzehuels/compgraph/pkg/component"
	"github.com/matzehuels/compgraph/pkg/document"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
	"github.com/matzehuels/compgraph/pkg/identity"
	"github.com/matzehuels/compgraph/pkg/observability"
)

// Exporter serializes subgraphs of a Graph.
type Exporter struct {
	Graph  *component.Graph
	Logger *log.Logger
	// Name is recorded as the document's exporter field.
	Name string
	// Now stamps the document. Defaults to the graph's clock.
	Now func() time.Time
}

// NewExporter returns an exporter for g using g's logger and clock.
func NewExporter(g *component.Graph) *Exporter {
	return &Exporter{
		Graph:  g,
		Logger: g.Logger(),
		Name:   buildinfo.Exporter(),
		Now:    g.Now,
	}
}

// Build returns the document for the subgraph reachable from roots.
// An empty roots list yields a valid document with no nodes.
func (x *Exporter) Build(ctx context.Context, roots []*component.Node) (*document.Document, error) {
	now := time.Now
	if x.Now != nil {
		now = x.Now
	}
	doc := document.New(now(), x.Name)

	w := &exportWalk{x: x, visited: identity.NewVisited()}
	for _, root := range roots {
		if root == nil {
			continue
		}
		e, err := w.element(ctx, root)
		if err != nil {
			return nil, err
		}
		doc.Export.Nodes = append(doc.Export.Nodes, e)
	}
	return doc, nil
}

// Export writes the subgraph reachable from roots to w.
func (x *Exporter) Export(ctx context.Context, roots []*component.Node, w io.Writer, enc document.Encoding) (err error) {
	start := time.Now()
	hooks := observability.Exchange()
	hooks.OnExportStart(ctx, len(roots))
	nodes := 0
	defer func() { hooks.OnExportComplete(ctx, nodes, time.Since(start), err) }()

	doc, err := x.Build(ctx, roots)
	if err != nil {
		return err
	}
	nodes, _ = doc.Count()
	if err := document.Encode(w, doc, enc); err != nil {
		return err
	}
	x.logger().Debug("exported", "roots", len(roots), "nodes", nodes)
	return nil
}

// ExportFile writes the subgraph reachable from roots to path, choosing the
// encoding from the extension.
func (x *Exporter) ExportFile(ctx context.Context, roots []*component.Node, path string) error {
	return x.ExportFileAs(ctx, roots, path, document.EncodingForPath(path))
}

// ExportFileAs writes the subgraph reachable from roots to path in enc. The
// file is written in place.
func (x *Exporter) ExportFileAs(ctx context.Context, roots []*component.Node, path string, enc document.Encoding) error {
	f, err := os.Create(path)
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIO, err, "create %s", path)
	}
	if err := x.Export(ctx, roots, f, enc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeIO, err, "close %s", path)
	}
	return nil
}

func (x *Exporter) logger() *log.Logger {
	if x.Logger != nil {
		return x.Logger
	}
	return log.Default()
}

type exportWalk struct {
	x       *Exporter
	visited *identity.Visited
}

// element emits n in full on first visit and as a back-reference afterwards.
func (w *exportWalk) element(ctx context.Context, n *component.Node) (document.Element, error) {
	if err := ctx.Err(); err != nil {
		return document.Element{}, err
	}
	if !w.visited.Visit(n.ID()) {
		return document.NewRef(n.ID()), nil
	}

	e := document.Element{
		ID:          n.ID(),
		Type:        n.TypeID(),
		Name:        n.Name(),
		Owner:       n.Owner(),
		Creator:     n.Creator(),
		ExternalKey: n.ExternalKey(),
	}
	if created := n.Created(); !created.IsZero() {
		e.Created = &created
	}

	state, err := w.state(ctx, n)
	if err != nil {
		return document.Element{}, err
	}
	e.State = state

	children, err := n.Children(ctx)
	if err != nil {
		return document.Element{}, persistenceError(err, "children of %s", n.ID())
	}
	for _, c := range children {
		ce, err := w.element(ctx, c)
		if err != nil {
			return document.Element{}, err
		}
		e.Children = append(e.Children, ce)
	}
	return e, nil
}

func (w *exportWalk) state(ctx context.Context, n *component.Node) (map[string]map[string]string, error) {
	views := w.x.Graph.Types().ViewTypes(n.TypeID())
	if len(views) == 0 {
		return nil, nil
	}
	var out map[string]map[string]string
	for _, vt := range views {
		bag, err := n.ViewState(ctx, vt)
		if err != nil {
			return nil, persistenceError(err, "view state of %s", n.ID())
		}
		if len(bag) == 0 {
			continue
		}
		if out == nil {
			out = make(map[string]map[string]string)
		}
		out[vt] = bag
	}
	return out, nil
}

// persistenceError keeps coded errors as they are and wraps the rest.
func persistenceError(err error, format string, args ...any) error {
	if cerrors.GetCode(err) != "" {
		return err
	}
	return cerrors.Wrap(cerrors.ErrCodePersistence, err, format, args...)
}
