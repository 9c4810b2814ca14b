// Package redis provides a node store on Redis.
//
// Each node is a JSON record under "<prefix>node:<id>", its ordered child
// list is a Redis list under "<prefix>children:<id>", and "<prefix>nodes"
// is the set of all ids. Commits use WATCH on the node key so concurrent
// writers never lose a version bump; a conflicting commit is retried.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/compgraph/pkg/cache"
	"github.com/matzehuels/compgraph/pkg/component"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
)

// DefaultPrefix namespaces keys when Options.Prefix is empty.
const DefaultPrefix = "compgraph:"

// Options configures the Redis connection.
type Options struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0").
	URL string

	// Prefix namespaces every key.
	Prefix string

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
}

// Store is a Redis-backed component.Store.
type Store struct {
	client *redis.Client
	prefix string
}

var _ component.Store = (*Store)(nil)

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "parse redis url")
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "connect to redis")
	}
	return &Store{client: client, prefix: opts.Prefix}, nil
}

func (s *Store) nodeKey(id string) string     { return s.prefix + "node:" + id }
func (s *Store) childrenKey(id string) string { return s.prefix + "children:" + id }
func (s *Store) indexKey() string             { return s.prefix + "nodes" }

// Load returns the record for id.
// GET and LRANGE run in one MULTI/EXEC so the list always belongs to the
// record version.
func (s *Store) Load(ctx context.Context, id string) (*component.Record, error) {
	var (
		recCmd  *redis.StringCmd
		kidsCmd *redis.StringSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		recCmd = p.Get(ctx, s.nodeKey(id))
		kidsCmd = p.LRange(ctx, s.childrenKey(id), 0, -1)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "load node %s", id)
	}
	rec, err := decodeRecord(id, recCmd)
	if err != nil {
		return nil, err
	}
	rec.Children = kidsCmd.Val()
	if rec.Children == nil {
		rec.Children = []string{}
	}
	return rec, nil
}

// Children returns the committed child list of id.
func (s *Store) Children(ctx context.Context, id string) ([]string, uint32, error) {
	rec, err := s.Load(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return rec.Children, rec.Version, nil
}

// Commit writes rec atomically with respect to other commits of the same id.
func (s *Store) Commit(ctx context.Context, rec *component.Record) (uint32, error) {
	var version uint32
	key := s.nodeKey(rec.ID)

	err := cache.RetryWithBackoff(ctx, func() error {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			prev, err := s.loadTx(ctx, tx, rec.ID)
			if err != nil {
				return err
			}
			version = component.NextVersion(prev, rec)
			if prev != nil && version == prev.Version {
				return nil
			}

			stored := *rec
			stored.Version = version
			stored.Children = nil
			data, err := json.Marshal(&stored)
			if err != nil {
				return cerrors.Wrap(cerrors.ErrCodePersistence, err, "encode node %s", rec.ID)
			}

			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.Set(ctx, key, data, 0)
				p.Del(ctx, s.childrenKey(rec.ID))
				if len(rec.Children) > 0 {
					p.RPush(ctx, s.childrenKey(rec.ID), toAny(rec.Children)...)
				}
				p.SAdd(ctx, s.indexKey(), rec.ID)
				return nil
			})
			return err
		}, key, s.childrenKey(rec.ID))
		if errors.Is(err, redis.TxFailedErr) {
			return cache.Retryable(err)
		}
		return err
	})
	if err != nil {
		if cerrors.GetCode(err) != "" {
			return 0, err
		}
		return 0, cerrors.Wrap(cerrors.ErrCodePersistence, err, "commit node %s", rec.ID)
	}
	return version, nil
}

func (s *Store) loadTx(ctx context.Context, tx *redis.Tx, id string) (*component.Record, error) {
	data, err := tx.Get(ctx, s.nodeKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "load node %s", id)
	}
	var prev component.Record
	if err := json.Unmarshal(data, &prev); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "decode node %s", id)
	}
	if prev.Children, err = tx.LRange(ctx, s.childrenKey(id), 0, -1).Result(); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "load children of %s", id)
	}
	return &prev, nil
}

// List returns summaries ordered by id.
func (s *Store) List(ctx context.Context) ([]component.Summary, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "list nodes")
	}
	slices.Sort(ids)

	out := make([]component.Summary, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Load(ctx, id)
		if cerrors.Is(err, cerrors.ErrCodeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, component.Summary{
			ID:          rec.ID,
			TypeID:      rec.TypeID,
			DisplayName: rec.DisplayName,
			Version:     rec.Version,
			ChildCount:  len(rec.Children),
		})
	}
	return out, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Prefix returns the key namespace.
func (s *Store) Prefix() string { return s.prefix }

func decodeRecord(id string, cmd *redis.StringCmd) (*component.Record, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cerrors.New(cerrors.ErrCodeNotFound, "node %s not found", id)
	}
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "load node %s", id)
	}
	var rec component.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodePersistence, err, "decode node %s", id)
	}
	return &rec, nil
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// IsRedisURL reports whether dsn names a Redis server.
func IsRedisURL(dsn string) bool {
	return strings.HasPrefix(dsn, "redis://") || strings.HasPrefix(dsn, "rediss://")
}
