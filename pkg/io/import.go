package io

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/compgraph/pkg/component"
	"github.com/matzehuels/compgraph/pkg/document"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
	"github.com/matzehuels/compgraph/pkg/identity"
	"github.com/matzehuels/compgraph/pkg/observability"
	"github.com/matzehuels/compgraph/pkg/registry"
)

// ImportOptions tunes an Importer.
type ImportOptions struct {
	// SkipSave leaves touched nodes dirty instead of saving them.
	SkipSave bool
	// Placeholder replaces types the registry cannot create.
	// Defaults to registry.Generic.
	Placeholder string
}

// Importer rebuilds documents into a Graph.
type Importer struct {
	Graph   *component.Graph
	Logger  *log.Logger
	Options ImportOptions
}

// NewImporter returns an importer for g using g's logger.
func NewImporter(g *component.Graph, opts ImportOptions) *Importer {
	if opts.Placeholder == "" {
		opts.Placeholder = registry.Generic
	}
	return &Importer{Graph: g, Logger: g.Logger(), Options: opts}
}

// Import reads files in order and rebuilds their content under a new
// session container attached to target. owner, when set, owns every node
// built; otherwise each node keeps the owner recorded in its document.
// A nil target leaves the session container unattached.
//
// Import does not return an error: per-file failures, per-node warnings and
// persistence errors are all collected in the report.
func (imp *Importer) Import(ctx context.Context, files []string, owner string, target *component.Node) *Report {
	start := time.Now()
	hooks := observability.Exchange()
	hooks.OnImportStart(ctx, len(files))

	s := &session{
		imp:     imp,
		g:       imp.Graph,
		logger:  imp.logger(),
		owner:   owner,
		target:  target,
		remap:   identity.NewRemap[*component.Node](),
		tracker: identity.NewTracker(),
		touched: make(map[string]bool),
		report:  &Report{Files: make([]FileResult, 0, len(files))},
	}

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			for _, rest := range files[i:] {
				s.report.Files = append(s.report.Files, FileResult{File: rest, Status: StatusCanceled, Message: err.Error()})
			}
			break
		}
		s.report.Files = append(s.report.Files, s.importFile(ctx, path))
	}

	s.finish(ctx)

	r := s.report
	hooks.OnImportComplete(ctx, r.NodesCreated, r.NodesReused, time.Since(start), r.Err())
	s.logger.Info("import finished",
		"files", len(files), "ok", r.Succeeded(), "created", r.NodesCreated,
		"reused", r.NodesReused, "warnings", len(r.Warnings))
	return r
}

func (imp *Importer) logger() *log.Logger {
	if imp.Logger != nil {
		return imp.Logger
	}
	return log.Default()
}

func (imp *Importer) placeholder() string {
	if imp.Options.Placeholder != "" {
		return imp.Options.Placeholder
	}
	return registry.Generic
}

// session is the state of one Import call. The remap and tracker span all
// files; index and built are reset per file.
type session struct {
	imp    *Importer
	g      *component.Graph
	logger *log.Logger
	owner  string
	target *component.Node

	remap   *identity.Remap[*component.Node]
	tracker *identity.Tracker

	touched   map[string]bool
	container *component.Node
	report    *Report

	file  string
	index map[string]*document.Element
	built *identity.Visited
}

func (s *session) importFile(ctx context.Context, path string) FileResult {
	res := FileResult{File: path}

	doc, err := document.ReadFile(path)
	if err != nil {
		res.Status = statusFor(err)
		res.Message = cerrors.UserMessage(err)
		s.logger.Warn("skipping file", "file", path, "status", res.Status, "err", res.Message)
		return res
	}

	fc, err := s.fileContainer(ctx, path, doc)
	if err != nil {
		res.Status = StatusFailed
		res.Message = cerrors.UserMessage(err)
		s.logger.Warn("skipping file", "file", path, "err", err)
		return res
	}

	s.file = path
	s.index = doc.Index()
	s.built = identity.NewVisited()

	var tops []*component.Node
	seen := identity.NewVisited()
	for i := range doc.Export.Nodes {
		if n := s.build(ctx, &doc.Export.Nodes[i]); n != nil && seen.Visit(n.ID()) {
			tops = append(tops, n)
		}
	}
	if err := fc.AddChildren(ctx, -1, tops...); err != nil {
		s.report.warn(path, "", cerrors.GetCode(err), cerrors.UserMessage(err))
		tops = nil
	}

	if err := s.attach(ctx, fc); err != nil {
		s.report.fail(path, err)
	}

	res.Status = StatusOK
	res.TopLevelCount = len(tops)
	res.Container = fc.ID()
	s.logger.Debug("imported file", "file", path, "top", len(tops))
	return res
}

func (s *session) fileContainer(ctx context.Context, path string, doc *document.Document) (*component.Node, error) {
	fc, err := s.g.Create(ctx, registry.ImportFile, s.owner)
	if err != nil {
		return nil, err
	}
	fc.SetDisplayName(filepath.Base(path))
	prov := component.PropertyBag{"source": path}
	if !doc.Export.Timestamp.IsZero() {
		prov["exported_at"] = doc.Export.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	if doc.Export.Exporter != "" {
		prov["exporter"] = doc.Export.Exporter
	}
	if err := fc.SetViewState(ctx, registry.ProvenanceView, prov); err != nil {
		return nil, err
	}
	s.touch(fc)
	return fc, nil
}

// attach appends a file container to the session container, creating the
// session container and linking it under the target on first use.
func (s *session) attach(ctx context.Context, fc *component.Node) error {
	if s.container == nil {
		c, err := s.g.Create(ctx, registry.ImportSession, s.owner)
		if err != nil {
			return err
		}
		c.SetDisplayName("imported on " + s.g.Now().UTC().Format(time.RFC3339))
		s.container = c
		s.report.Session = c.ID()
		s.touch(c)
		if s.target != nil {
			if err := s.target.AddChildren(ctx, -1, c); err != nil {
				return err
			}
			s.touch(s.target)
		}
	}
	return s.container.AddChildren(ctx, -1, fc)
}

// build returns the node for e, creating it on first encounter.
// It returns nil when e cannot be materialized; the reason is recorded as a
// warning.
func (s *session) build(ctx context.Context, e *document.Element) *component.Node {
	if e.IsRef() {
		return s.resolveRef(ctx, e.Ref)
	}

	if n, ok := s.remap.Lookup(e.ID); ok {
		s.closesCycle(e.ID)
		if s.built.Visit(e.ID) {
			s.report.NodesReused++
			s.logger.Debug("reusing node", "file", s.file, "source", e.ID, "id", n.ID())
		}
		s.touch(n)
		return n
	}
	if !s.built.Visit(e.ID) {
		// Already attempted through a forward reference and skipped.
		return nil
	}

	n, err := s.create(ctx, e)
	if err != nil {
		s.report.warn(s.file, e.ID, cerrors.GetCode(err), cerrors.UserMessage(err))
		s.logger.Warn("skipping subtree", "file", s.file, "source", e.ID, "err", err)
		return nil
	}

	// Bind before recursing so descendants that refer back reach this node.
	s.remap.Bind(e.ID, n)
	s.tracker.Begin(e.ID)
	s.touch(n)
	s.report.NodesCreated++

	var children []*component.Node
	for i := range e.Children {
		if c := s.build(ctx, &e.Children[i]); c != nil {
			children = append(children, c)
		}
	}
	if err := n.AddChildren(ctx, -1, children...); err != nil {
		s.report.warn(s.file, e.ID, cerrors.GetCode(err), cerrors.UserMessage(err))
		s.logger.Warn("children not attached", "file", s.file, "source", e.ID, "err", err)
	}
	s.tracker.Finish(e.ID)
	return n
}

// resolveRef finds the node a back-reference names: one already built in
// this session, or a full element later in the same file.
func (s *session) resolveRef(ctx context.Context, id string) *component.Node {
	if n, ok := s.remap.Lookup(id); ok {
		s.closesCycle(id)
		s.touch(n)
		return n
	}
	if e, ok := s.index[id]; ok {
		if !s.built.Has(id) {
			return s.build(ctx, e)
		}
		s.report.warn(s.file, id, cerrors.ErrCodeDanglingRef, "reference to skipped node "+id)
		return nil
	}
	s.report.warn(s.file, id, cerrors.ErrCodeDanglingRef, "reference to unknown node "+id)
	s.logger.Warn("dangling reference", "file", s.file, "ref", id)
	return nil
}

// closesCycle counts a reference to a node whose subtree is still being
// built: it points back up the current path.
func (s *session) closesCycle(id string) {
	if s.tracker.State(id) != identity.InProgress {
		return
	}
	s.report.CycleRefs++
	s.logger.Debug("cycle", "file", s.file, "ref", id)
}

func (s *session) create(ctx context.Context, e *document.Element) (*component.Node, error) {
	typeID, substituted := identity.Resolve(s.g.Types(), e.Type, s.imp.placeholder())
	if substituted {
		s.report.warn(s.file, e.ID, cerrors.ErrCodeUncreatableType,
			"type "+e.Type+" cannot be created, using "+typeID)
		s.logger.Warn("substituting placeholder", "file", s.file, "source", e.ID, "type", e.Type, "placeholder", typeID)
	}

	owner := s.owner
	if owner == "" {
		owner = e.Owner
	}
	n, err := s.g.Create(ctx, typeID, owner)
	if err != nil {
		return nil, err
	}
	n.SetDisplayName(e.Name)
	if e.Creator != "" {
		n.SetCreator(e.Creator)
	}
	if e.Created != nil {
		n.SetCreated(*e.Created)
	}
	n.SetExternalKey(e.ExternalKey)
	for vt, bag := range e.State {
		if err := n.SetViewState(ctx, vt, bag); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func (s *session) touch(n *component.Node) {
	if s.touched[n.ID()] {
		return
	}
	s.touched[n.ID()] = true
	s.report.Touched = append(s.report.Touched, n)
}

// finish marks every touched node dirty and, unless SkipSave is set, saves
// them. The walk visits each node once, so cyclic imports save each node once.
func (s *session) finish(ctx context.Context) {
	for _, n := range s.report.Touched {
		n.MarkDirty()
	}
	if s.imp.Options.SkipSave || len(s.report.Touched) == 0 {
		return
	}
	saved, err := component.SaveAll(ctx, s.report.Touched, func(n *component.Node) bool {
		return s.touched[n.ID()]
	})
	s.report.Saved = saved
	if err == nil {
		return
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			s.report.fail("", e)
		}
	} else {
		s.report.fail("", err)
	}
	s.logger.Error("saving imported nodes", "err", err)
}
