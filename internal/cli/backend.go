package cli

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/appmap/pkg/admin"
	"github.com/matzehuels/appmap/pkg/cache"
	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/config"
	"github.com/matzehuels/appmap/pkg/diagram"
	"github.com/matzehuels/appmap/pkg/layout"
	"github.com/matzehuels/appmap/pkg/storage/mongo"
)

// backend is the set of services a command works against, built from the
// configuration. Close releases every connection it opened.
type backend struct {
	cfg      config.Config
	catalog  catalog.Repository
	layouts  *layout.Layouts
	diagrams *diagram.Service
	admin    *admin.Coordinator

	closers []func() error
}

// openBackend wires the catalog, layout store and cache selected by cfg.
func openBackend(ctx context.Context, cfg config.Config, logger *log.Logger) (*backend, error) {
	b := &backend{cfg: cfg}

	store, err := b.openStorage(ctx, logger)
	if err != nil {
		b.Close()
		return nil, err
	}

	c, err := openCache(ctx, cfg.Cache)
	if err != nil {
		b.Close()
		return nil, err
	}
	if _, disabled := c.(*cache.NullCache); !disabled {
		store = layout.NewCachedStore(store, c, cacheKeyer(cfg), cfg.Cache.TTL.Duration, logger)
		b.closers = append(b.closers, c.Close)
	}
	b.closers = append(b.closers, store.Close)

	b.layouts = layout.NewLayouts(store, layout.CatalogResolver(b.catalog), logger)
	b.diagrams = diagram.NewService(b.catalog, b.layouts, cfg.AllowList(), logger)
	b.admin = admin.New(b.catalog, b.layouts, logger)

	logger.Debug("backend ready",
		"storage", cfg.Storage.Backend,
		"cache", cfg.Cache.Backend,
		"streams", len(cfg.Streams))
	return b, nil
}

// openStorage sets b.catalog and returns the layout store.
func (b *backend) openStorage(ctx context.Context, logger *log.Logger) (layout.Store, error) {
	cfg := b.cfg
	if cfg.Storage.Backend == config.BackendMongo {
		db, err := mongo.Connect(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, logger)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		b.catalog = mongo.NewCatalog(db)
		return mongo.NewLayoutStore(db), nil
	}

	if cfg.Catalog.File != "" {
		m, err := catalog.LoadFile(cfg.Catalog.File)
		if err != nil {
			return nil, err
		}
		b.catalog = m
	} else {
		logger.Warn("no catalog file configured, starting with an empty catalog")
		b.catalog = catalog.NewMemory()
	}

	switch cfg.Storage.Backend {
	case config.BackendFile:
		return layout.NewFileStore(cfg.Storage.Dir)
	default:
		return layout.NewMemoryStore(), nil
	}
}

// openCache returns the layout cache selected by cfg. Every backend is
// returned as a cache.Cache; NullCache means caching is off.
func openCache(ctx context.Context, cfg config.Cache) (cache.Cache, error) {
	switch cfg.Backend {
	case config.CacheFile:
		return cache.NewFileCache(cfg.Dir)
	case config.CacheRedis:
		c, err := cache.NewRedisCache(ctx, cache.RedisOptions{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return c, nil
	default:
		return cache.NewNullCache(), nil
	}
}

// Close releases resources in reverse order of acquisition.
func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return stderrors.Join(errs...)
}
