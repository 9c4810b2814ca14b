// Package memory provides an in-process node store.
//
// It backs tests and throwaway CLI sessions (DSN "memory:"). Records are
// deep-copied on the way in and out so callers never share state with it.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/matzehuels/compgraph/pkg/component"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
)

// Store is a map-backed component.Store.
type Store struct {
	mu      sync.RWMutex
	records map[string]*component.Record
	commits int
}

var _ component.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[string]*component.Record)}
}

// Load returns a copy of the record for id.
func (s *Store) Load(ctx context.Context, id string) (*component.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, cerrors.New(cerrors.ErrCodeNotFound, "node %s not found", id)
	}
	return copyRecord(rec), nil
}

// Children returns the committed child list of id.
func (s *Store) Children(ctx context.Context, id string) ([]string, uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, 0, cerrors.New(cerrors.ErrCodeNotFound, "node %s not found", id)
	}
	return slices.Clone(rec.Children), rec.Version, nil
}

// Commit stores a copy of rec.
func (s *Store) Commit(ctx context.Context, rec *component.Record) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, cerrors.Wrap(cerrors.ErrCodePersistence, err, "commit %s", rec.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := copyRecord(rec)
	next.Version = component.NextVersion(s.records[rec.ID], rec)
	s.records[rec.ID] = next
	s.commits++
	return next.Version, nil
}

// List returns summaries ordered by id.
func (s *Store) List(ctx context.Context) ([]component.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]component.Summary, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, component.Summary{
			ID:          rec.ID,
			TypeID:      rec.TypeID,
			DisplayName: rec.DisplayName,
			Version:     rec.Version,
			ChildCount:  len(rec.Children),
		})
	}
	slices.SortFunc(out, func(a, b component.Summary) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

// Commits returns how many commits the store has accepted.
func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func copyRecord(rec *component.Record) *component.Record {
	out := *rec
	out.Children = slices.Clone(rec.Children)
	if out.Children == nil {
		out.Children = []string{}
	}
	if rec.ViewState != nil {
		out.ViewState = make(map[string]component.PropertyBag, len(rec.ViewState))
		for k, v := range rec.ViewState {
			out.ViewState[k] = v.Clone()
		}
	}
	return &out
}
