package layout

import (
	"context"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/errors"
	"github.com/matzehuels/appmap/pkg/observability"
)

// StreamResolver maps a stream name to its numeric id. It returns a
// NOT_FOUND coded error for unknown names.
type StreamResolver interface {
	StreamIDByName(ctx context.Context, name string) (int64, error)
}

// StreamResolverFunc adapts a function to StreamResolver.
type StreamResolverFunc func(ctx context.Context, name string) (int64, error)

func (f StreamResolverFunc) StreamIDByName(ctx context.Context, name string) (int64, error) {
	return f(ctx, name)
}

// CatalogResolver resolves stream names through a catalog reader.
func CatalogResolver(r catalog.Reader) StreamResolver {
	return StreamResolverFunc(func(ctx context.Context, name string) (int64, error) {
		return catalog.StreamIDByName(ctx, r, name)
	})
}

// Layouts is the layout API used by the diagram service and the cleanup
// coordinator. Stream layouts are stored under the stream id; the name-based
// methods resolve the id first and fall back to legacy name-keyed records.
type Layouts struct {
	store    Store
	resolver StreamResolver
	logger   *log.Logger
	now      func() time.Time
}

// NewLayouts creates the facade. A nil resolver disables id resolution, so
// name-based calls read and write legacy name-keyed records only.
func NewLayouts(store Store, resolver StreamResolver, logger *log.Logger) *Layouts {
	if logger == nil {
		logger = log.Default()
	}
	return &Layouts{store: store, resolver: resolver, logger: logger, now: time.Now}
}

// Store returns the backing store.
func (s *Layouts) Store() Store { return s.store }

// =============================================================================
// Reads
// =============================================================================

// GetByStreamID returns the stream's layout, or nil if never saved.
func (s *Layouts) GetByStreamID(ctx context.Context, id int64) (*Layout, error) {
	return s.store.Get(ctx, StreamKey(id))
}

// GetByStreamName resolves name to an id and returns that layout. When the
// stream has no id-keyed layout, or cannot be resolved, a legacy record
// keyed by name is returned instead.
func (s *Layouts) GetByStreamName(ctx context.Context, name string) (*Layout, error) {
	id, ok, err := s.resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		id = 0
	}
	return s.GetByStream(ctx, id, name)
}

// GetByStream returns the layout stored under id, falling back to the legacy
// record stored under name. A zero id skips the id lookup.
func (s *Layouts) GetByStream(ctx context.Context, id int64, name string) (*Layout, error) {
	if id > 0 {
		l, err := s.store.Get(ctx, StreamKey(id))
		if err != nil || l != nil {
			return l, err
		}
	}
	if name == "" {
		return nil, nil
	}
	return s.store.Get(ctx, StreamNameKey(name))
}

// GetByAppID returns the app's layout, or nil if never saved.
func (s *Layouts) GetByAppID(ctx context.Context, id int64) (*Layout, error) {
	return s.store.Get(ctx, AppKey(id))
}

// =============================================================================
// Upserts
// =============================================================================

// UpsertByStreamID stores l as the layout of stream id.
func (s *Layouts) UpsertByStreamID(ctx context.Context, id int64, l *Layout) (*Layout, error) {
	return s.save(ctx, StreamKey(id), l)
}

// UpsertByStreamName stores l under the stream's id when the name resolves
// and removes any legacy name-keyed record. Unresolvable names are saved
// under the legacy key.
func (s *Layouts) UpsertByStreamName(ctx context.Context, name string, l *Layout) (*Layout, error) {
	id, ok, err := s.resolve(ctx, name)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLayoutSaveFailed, err, "resolve stream %q", name)
	}
	if !ok {
		return s.save(ctx, StreamNameKey(name), l)
	}

	saved, err := s.save(ctx, StreamKey(id), l)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, StreamNameKey(name)); err != nil {
		s.logger.Warn("remove legacy layout", "stream", name, "err", err)
	}
	return saved, nil
}

// UpsertByAppID stores l as the layout of app id.
func (s *Layouts) UpsertByAppID(ctx context.Context, id int64, l *Layout) (*Layout, error) {
	return s.save(ctx, AppKey(id), l)
}

func (s *Layouts) save(ctx context.Context, key Key, in *Layout) (*Layout, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	rec := in.Clone()
	if rec == nil {
		rec = New(key)
	}
	rec.Key = key
	if rec.NodesLayout == nil {
		rec.NodesLayout = map[string]NodeLayout{}
	}
	if rec.EdgesLayout == nil {
		rec.EdgesLayout = []EdgeLayout{}
	}
	rec.UpdatedAt = s.now().UTC()

	start := time.Now()
	err := s.store.Put(ctx, rec)
	observability.Layout().OnSave(ctx, string(kindOf(key)), time.Since(start), err)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLayoutSaveFailed, err, "save layout %s", key)
	}
	s.logger.Debug("saved layout", "key", key.String(),
		"nodes", len(rec.NodesLayout), "edges", len(rec.EdgesLayout))
	return rec, nil
}

// =============================================================================
// Cleanup
// =============================================================================

// DeleteAppReferences removes an app from every stored layout: stream
// layouts (id- and name-keyed) and other apps' layouts are pruned, and the
// app's own layout is deleted. Only changed layouts are written. It returns
// the number of layouts rewritten or deleted.
func (s *Layouts) DeleteAppReferences(ctx context.Context, appID int64) (int, error) {
	changed, err := s.rewrite(ctx, func(l *Layout) (bool, bool) {
		if l.Key.Kind == KindApp && l.Key.ID == appID {
			return true, true
		}
		return PruneApp(l, appID), false
	})
	observability.Layout().OnCleanup(ctx, "app", changed, err)
	if err != nil {
		return changed, errors.Wrap(errors.ErrCodeLayoutSaveFailed, err, "remove app %d from layouts", appID)
	}
	s.logger.Debug("pruned app from layouts", "app", appID, "layouts", changed)
	return changed, nil
}

// DeleteEdge removes an edge id from every stored layout.
func (s *Layouts) DeleteEdge(ctx context.Context, edgeID string) (int, error) {
	changed, err := s.rewrite(ctx, func(l *Layout) (bool, bool) {
		return PruneEdge(l, edgeID), false
	})
	observability.Layout().OnCleanup(ctx, "integration", changed, err)
	if err != nil {
		return changed, errors.Wrap(errors.ErrCodeLayoutSaveFailed, err, "remove edge %s from layouts", edgeID)
	}
	return changed, nil
}

// DeleteStream removes a stream's layout under both its id and its legacy
// name key. A zero id or empty name skips that key.
func (s *Layouts) DeleteStream(ctx context.Context, id int64, name string) error {
	var err error
	if id > 0 {
		err = s.store.Delete(ctx, StreamKey(id))
	}
	if err == nil && name != "" {
		err = s.store.Delete(ctx, StreamNameKey(name))
	}
	observability.Layout().OnCleanup(ctx, "stream", 0, err)
	if err != nil {
		return errors.Wrap(errors.ErrCodeLayoutSaveFailed, err, "delete layout of stream %q", name)
	}
	return nil
}

// PruneStale drops layout entries that no longer match the catalog: nodes
// of deleted apps, edges with no integration behind them and the layouts of
// deleted apps. Non-numeric node ids (stream group nodes) are kept. It
// returns the number of layouts rewritten or deleted.
func (s *Layouts) PruneStale(ctx context.Context, r catalog.Reader) (int, error) {
	referenced, err := s.referencedApps(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeLayoutSaveFailed, err, "list layouts")
	}

	live := make(map[int64]bool, len(referenced))
	liveEdges := map[string]bool{}
	if len(referenced) > 0 {
		apps, err := r.AppsByIDs(ctx, referenced)
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeInternal, err, "load referenced apps")
		}
		ids := make([]int64, 0, len(apps))
		for _, a := range apps {
			live[a.ID] = true
			ids = append(ids, a.ID)
		}
		if len(ids) > 0 {
			integrations, err := r.IntegrationsTouching(ctx, ids)
			if err != nil {
				return 0, errors.Wrap(errors.ErrCodeInternal, err, "load integrations")
			}
			for i := range integrations {
				liveEdges[integrations[i].EdgeID()] = true
			}
		}
	}

	changed, err := s.rewrite(ctx, func(l *Layout) (bool, bool) {
		if l.Key.Kind == KindApp && !live[l.Key.ID] {
			return true, true
		}
		dirty := false
		for _, id := range nodeAppIDs(l) {
			if !live[id] && PruneApp(l, id) {
				dirty = true
			}
		}
		for _, e := range append([]EdgeLayout(nil), l.EdgesLayout...) {
			if !liveEdges[e.ID] && PruneEdge(l, e.ID) {
				dirty = true
			}
		}
		return dirty, false
	})
	observability.Layout().OnCleanup(ctx, "stale", changed, err)
	if err != nil {
		return changed, errors.Wrap(errors.ErrCodeLayoutSaveFailed, err, "prune stale layouts")
	}
	s.logger.Debug("pruned stale layout entries", "layouts", changed)
	return changed, nil
}

// referencedApps collects every app id a stored layout mentions.
func (s *Layouts) referencedApps(ctx context.Context) ([]int64, error) {
	seen := map[int64]bool{}
	var ids []int64
	add := func(id int64) {
		if id > 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, kind := range []Kind{KindStream, KindStreamName, KindApp} {
		layouts, err := s.store.List(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, l := range layouts {
			if l.Key.Kind == KindApp {
				add(l.Key.ID)
			}
			for _, id := range nodeAppIDs(l) {
				add(id)
			}
		}
	}
	return ids, nil
}

// nodeAppIDs returns the app ids among l's node and edge endpoint keys.
func nodeAppIDs(l *Layout) []int64 {
	var ids []int64
	add := func(key string) {
		if id, err := strconv.ParseInt(key, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	for key := range l.NodesLayout {
		add(key)
	}
	for _, e := range l.EdgesLayout {
		src, tgt := e.Endpoints()
		add(src)
		add(tgt)
	}
	return ids
}

// rewrite applies fn to every stored layout. fn reports whether the layout
// changed and whether it should be deleted outright.
func (s *Layouts) rewrite(ctx context.Context, fn func(*Layout) (changed, remove bool)) (int, error) {
	n := 0
	for _, kind := range []Kind{KindStream, KindStreamName, KindApp} {
		layouts, err := s.store.List(ctx, kind)
		if err != nil {
			return n, err
		}
		for _, l := range layouts {
			changed, remove := fn(l)
			switch {
			case remove:
				err = s.store.Delete(ctx, l.Key)
			case changed:
				l.UpdatedAt = s.now().UTC()
				err = s.store.Put(ctx, l)
			default:
				continue
			}
			if err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func (s *Layouts) resolve(ctx context.Context, name string) (int64, bool, error) {
	if s.resolver == nil {
		return 0, false, nil
	}
	id, err := s.resolver.StreamIDByName(ctx, name)
	if errors.Is(err, errors.ErrCodeNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// kindOf folds legacy name keys into "stream" for metrics.
func kindOf(k Key) Kind {
	if k.Kind == KindStreamName {
		return KindStream
	}
	return k.Kind
}
