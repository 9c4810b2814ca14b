package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/compgraph/pkg/cache"
	"github.com/matzehuels/compgraph/pkg/component"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
	"github.com/matzehuels/compgraph/pkg/identity"
	"github.com/matzehuels/compgraph/pkg/observability"
	"github.com/matzehuels/compgraph/pkg/observability/tracing"
	"github.com/matzehuels/compgraph/pkg/policy"
	"github.com/matzehuels/compgraph/pkg/registry"
	"github.com/matzehuels/compgraph/pkg/store/memory"
	"github.com/matzehuels/compgraph/pkg/store/mongo"
	"github.com/matzehuels/compgraph/pkg/store/redis"
	"github.com/matzehuels/compgraph/pkg/store/sqlite"
)

// workspace is everything a command needs to work on a graph.
type workspace struct {
	graph *component.Graph
	store component.Store
	cache cache.Cache
	types *registry.Registry
	trace *tracing.Provider
}

// openWorkspace wires store, cache, registry, policy and tracing from the
// loaded configuration.
func (c *CLI) openWorkspace(cmd *cobra.Command) (*workspace, error) {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)
	ws := &workspace{types: registry.New()}

	if c.cfg.Trace {
		p, err := tracing.NewProvider(tracing.Config{Writer: os.Stderr})
		if err != nil {
			return nil, err
		}
		tracing.Install(p.Tracer())
		ws.trace = p
	}

	if path := c.cfg.Types.Catalog; path != "" {
		if err := ws.types.LoadCatalog(path); err != nil {
			return nil, err
		}
		logger.Debug("loaded type catalog", "path", path)
	}

	var gate component.PolicyGate
	if len(c.cfg.Policy.Rules) > 0 {
		rules, err := policy.NewRules(c.cfg.Policy.Rules)
		if err != nil {
			return nil, err
		}
		gate = rules
		logger.Debug("loaded policy", "rules", rules.Len())
	}

	store, err := openStore(ctx, c.cfg.Store)
	if err != nil {
		return nil, err
	}
	ws.store = store

	ws.cache, err = c.newCache(cmd)
	if err != nil {
		store.Close()
		return nil, err
	}

	ws.graph = component.New(store, component.Options{
		IDs:      identity.UUIDSource{},
		Types:    ws.types,
		Policy:   gate,
		Cache:    ws.cache,
		Keyer:    cache.NewScopedKeyer(cache.NewDefaultKeyer(), cache.StoreScope(c.cfg.Store)),
		ChildTTL: c.cfg.Cache.TTL,
		Logger:   logger,
	})
	logger.Debug("opened store", "dsn", c.cfg.Store)
	return ws, nil
}

// Close releases the store and cache and flushes pending spans.
func (ws *workspace) Close(ctx context.Context) error {
	var errs []error
	if ws.cache != nil {
		errs = append(errs, ws.cache.Close())
	}
	if ws.store != nil {
		errs = append(errs, ws.store.Close())
	}
	if ws.trace != nil {
		errs = append(errs, ws.trace.Shutdown(ctx))
		observability.Reset()
	}
	return errors.Join(errs...)
}

// lookup resolves ids to nodes, failing on the first unknown id.
func (ws *workspace) lookup(ctx context.Context, ids []string) ([]*component.Node, error) {
	nodes := make([]*component.Node, 0, len(ids))
	for _, id := range ids {
		n, err := ws.graph.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// =============================================================================
// Stores
// =============================================================================

// openStore opens the backend a DSN names. Anything that is not a known
// scheme is a sqlite database path.
func openStore(ctx context.Context, dsn string) (component.Store, error) {
	switch {
	case dsn == "memory:":
		return memory.New(), nil
	case redis.IsRedisURL(dsn):
		s, err := redis.Open(ctx, redis.Options{URL: dsn})
		if err != nil {
			return nil, err
		}
		return s, nil
	case mongo.IsMongoURI(dsn):
		s, err := mongo.Open(ctx, mongo.Options{URI: dsn})
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return openSQLite(ctx, strings.TrimPrefix(dsn, "sqlite:"))
	case dsn == "":
		return nil, cerrors.New(cerrors.ErrCodeInvalidInput, "no store configured")
	default:
		return openSQLite(ctx, dsn)
	}
}

func openSQLite(ctx context.Context, path string) (component.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCodeIO, err, "create store directory")
	}
	s, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// =============================================================================
// Cache
// =============================================================================

func (c *CLI) newCache(cmd *cobra.Command) (cache.Cache, error) {
	if c.noCache(cmd) {
		return cache.NewNullCache(), nil
	}
	// An in-process store lives only as long as the command, so a disk cache
	// would outlive every entry it holds.
	if c.cfg.Store == "memory:" {
		return cache.NewMemoryCache(c.cfg.Cache.TTL, 0), nil
	}
	fc, err := cache.NewFileCache(c.cfg.Cache.Dir)
	if err != nil {
		loggerFromContext(cmd.Context()).Warn("cache unavailable", "dir", c.cfg.Cache.Dir, "err", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}
