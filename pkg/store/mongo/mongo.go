// Package mongo provides a node store on MongoDB.
//
// Each node is one document in the nodes collection, keyed by its id, with
// the ordered child list embedded. Commits are optimistic: an update only
// applies if the stored version is the one it was computed from, and a lost
// race is retried.
package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/compgraph/pkg/cache"
	"github.com/matzehuels/compgraph/pkg/component"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
)

const (
	DefaultDatabase   = "compgraph"
	DefaultCollection = "nodes"
)

// Options configures the MongoDB connection.
type Options struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// Store is a MongoDB-backed component.Store.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ component.Store = (*Store)(nil)

var errVersionConflict = errors.New("version conflict")

// Open connects to MongoDB and verifies the connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "connect to mongodb")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "ping mongodb")
	}
	return &Store{
		client: client,
		coll:   client.Database(opts.Database).Collection(opts.Collection),
	}, nil
}

// Load returns the record for id.
func (s *Store) Load(ctx context.Context, id string) (*component.Record, error) {
	rec, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, cerrors.New(cerrors.ErrCodeNotFound, "node %s not found", id)
	}
	return rec, nil
}

func (s *Store) find(ctx context.Context, id string) (*component.Record, error) {
	var rec component.Record
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "load node %s", id)
	}
	if rec.Children == nil {
		rec.Children = []string{}
	}
	return &rec, nil
}

// Children returns the committed child list of id.
func (s *Store) Children(ctx context.Context, id string) ([]string, uint32, error) {
	var doc struct {
		Version  uint32   `bson:"version"`
		Children []string `bson:"children"`
	}
	opts := options.FindOne().SetProjection(bson.M{"version": 1, "children": 1})
	err := s.coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, 0, cerrors.New(cerrors.ErrCodeNotFound, "node %s not found", id)
	}
	if err != nil {
		return nil, 0, cerrors.Wrap(cerrors.ErrCodePersistence, err, "load children of %s", id)
	}
	if doc.Children == nil {
		doc.Children = []string{}
	}
	return doc.Children, doc.Version, nil
}

// Commit writes rec, retrying when another writer got there first.
func (s *Store) Commit(ctx context.Context, rec *component.Record) (uint32, error) {
	var version uint32
	err := cache.RetryWithBackoff(ctx, func() error {
		prev, err := s.find(ctx, rec.ID)
		if err != nil {
			return err
		}
		// BSON dates carry milliseconds.
		doc := *rec
		doc.Created = rec.Created.UTC().Truncate(time.Millisecond)
		version = component.NextVersion(prev, &doc)
		if prev != nil && version == prev.Version {
			return nil
		}
		doc.Version = version
		if doc.Children == nil {
			doc.Children = []string{}
		}

		if prev == nil {
			_, err := s.coll.InsertOne(ctx, &doc)
			if mongo.IsDuplicateKeyError(err) {
				return cache.Retryable(errVersionConflict)
			}
			return err
		}
		res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": rec.ID, "version": prev.Version}, &doc)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return cache.Retryable(errVersionConflict)
		}
		return nil
	})
	if err != nil {
		if cerrors.GetCode(err) != "" {
			return 0, err
		}
		return 0, cerrors.Wrap(cerrors.ErrCodePersistence, err, "commit node %s", rec.ID)
	}
	return version, nil
}

// List returns summaries ordered by id.
func (s *Store) List(ctx context.Context) ([]component.Summary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "list nodes")
	}
	defer cur.Close(ctx)

	var out []component.Summary
	for cur.Next(ctx) {
		var rec component.Record
		if err := cur.Decode(&rec); err != nil {
			return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "decode node")
		}
		out = append(out, component.Summary{
			ID:          rec.ID,
			TypeID:      rec.TypeID,
			DisplayName: rec.DisplayName,
			Version:     rec.Version,
			ChildCount:  len(rec.Children),
		})
	}
	if err := cur.Err(); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "list nodes")
	}
	return out, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes the collection. Intended for tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.coll.Drop(ctx)
}

// IsMongoURI reports whether dsn names a MongoDB deployment.
func IsMongoURI(dsn string) bool {
	return strings.HasPrefix(dsn, "mongodb://") || strings.HasPrefix(dsn, "mongodb+srv://")
}
