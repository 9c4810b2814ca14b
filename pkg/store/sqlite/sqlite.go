// Package sqlite provides a node store on an embedded SQLite database.
//
// This is the CLI's default backend. Records live in a nodes table and the
// ordered child lists in child_refs, one row per position. The schema is
// created on open.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/matzehuels/compgraph/pkg/component"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	owner TEXT NOT NULL DEFAULT '',
	creator TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	external_key TEXT NOT NULL DEFAULT '',
	delegate TEXT NOT NULL DEFAULT '',
	version INTEGER NOT NULL,
	state TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS child_refs (
	parent_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	child_id TEXT NOT NULL,
	PRIMARY KEY (parent_id, position)
);

CREATE INDEX IF NOT EXISTS child_refs_child ON child_refs (child_id);
`

// Store is a SQLite-backed component.Store.
type Store struct {
	db   *sql.DB
	path string
}

var _ component.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := cerrors.ValidateSourcePath(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "open %s", path)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "ping %s", path)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "create schema in %s", path)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Load returns the record for id.
func (s *Store) Load(ctx context.Context, id string) (*component.Record, error) {
	var rec *component.Record
	err := s.read(ctx, func(tx *sql.Tx) error {
		var err error
		rec, err = loadRecord(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, cerrors.New(cerrors.ErrCodeNotFound, "node %s not found", id)
	}
	return rec, nil
}

// Children returns the committed child list of id together with the version
// it belongs to. Both are read in one transaction.
func (s *Store) Children(ctx context.Context, id string) ([]string, uint32, error) {
	var (
		ids     []string
		version uint32
	)
	err := s.read(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT version FROM nodes WHERE id = ?`, id).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return cerrors.New(cerrors.ErrCodeNotFound, "node %s not found", id)
		}
		if err != nil {
			return cerrors.Wrap(cerrors.ErrCodePersistence, err, "load version of %s", id)
		}
		ids, err = loadChildren(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return ids, version, nil
}

// read runs fn in a read-only transaction so that multi-statement reads see
// a single committed state.
func (s *Store) read(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return cerrors.Wrap(cerrors.ErrCodePersistence, err, "begin read")
	}
	defer tx.Rollback() //nolint:errcheck // read-only
	return fn(tx)
}

// Commit writes rec in one transaction.
func (s *Store) Commit(ctx context.Context, rec *component.Record) (uint32, error) {
	state, err := json.Marshal(rec.ViewState)
	if err != nil {
		return 0, cerrors.Wrap(cerrors.ErrCodePersistence, err, "encode state of %s", rec.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, cerrors.Wrap(cerrors.ErrCodePersistence, err, "begin commit of %s", rec.ID)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	prev, err := loadRecord(ctx, tx, rec.ID)
	if err != nil {
		return 0, err
	}
	version := component.NextVersion(prev, rec)
	if prev != nil && version == prev.Version {
		return version, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (id, type, name, owner, creator, created_at, external_key, delegate, version, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			type = excluded.type, name = excluded.name, owner = excluded.owner,
			creator = excluded.creator, created_at = excluded.created_at,
			external_key = excluded.external_key, delegate = excluded.delegate,
			version = excluded.version, state = excluded.state`,
		rec.ID, rec.TypeID, rec.DisplayName, rec.Owner, rec.Creator,
		rec.Created.UTC().Format(time.RFC3339Nano), rec.ExternalKey, rec.Delegate, version, string(state))
	if err != nil {
		return 0, cerrors.Wrap(cerrors.ErrCodePersistence, err, "write node %s", rec.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM child_refs WHERE parent_id = ?`, rec.ID); err != nil {
		return 0, cerrors.Wrap(cerrors.ErrCodePersistence, err, "clear children of %s", rec.ID)
	}
	for i, child := range rec.Children {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO child_refs (parent_id, position, child_id) VALUES (?, ?, ?)`,
			rec.ID, i, child); err != nil {
			return 0, cerrors.Wrap(cerrors.ErrCodePersistence, err, "write child of %s", rec.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, cerrors.Wrap(cerrors.ErrCodePersistence, err, "commit %s", rec.ID)
	}
	return version, nil
}

// List returns summaries ordered by id.
func (s *Store) List(ctx context.Context) ([]component.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id, n.type, n.name, n.version,
			(SELECT COUNT(*) FROM child_refs c WHERE c.parent_id = n.id)
		FROM nodes n
		ORDER BY n.id`)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "list nodes")
	}
	defer rows.Close()

	var out []component.Summary
	for rows.Next() {
		var sum component.Summary
		if err := rows.Scan(&sum.ID, &sum.TypeID, &sum.DisplayName, &sum.Version, &sum.ChildCount); err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "scan node")
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "list nodes")
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// loadRecord returns nil, nil for a missing id.
func loadRecord(ctx context.Context, q queryer, id string) (*component.Record, error) {
	var (
		rec     component.Record
		created string
		state   string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, type, name, owner, creator, created_at, external_key, delegate, version, state
		FROM nodes WHERE id = ?`, id).
		Scan(&rec.ID, &rec.TypeID, &rec.DisplayName, &rec.Owner, &rec.Creator,
			&created, &rec.ExternalKey, &rec.Delegate, &rec.Version, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "load node %s", id)
	}

	if rec.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "decode created time of %s", id)
	}
	if state != "" && state != "null" {
		if err := json.Unmarshal([]byte(state), &rec.ViewState); err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "decode state of %s", id)
		}
	}
	if rec.Children, err = loadChildren(ctx, q, id); err != nil {
		return nil, err
	}
	return &rec, nil
}

func loadChildren(ctx context.Context, q queryer, id string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT child_id FROM child_refs WHERE parent_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "load children of %s", id)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "scan child of %s", id)
		}
		ids = append(ids, child)
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "load children of %s", id)
	}
	return ids, nil
}
