package layout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/appmap/pkg/cache"
	"github.com/matzehuels/appmap/pkg/observability"
)

const cacheKeyType = "layout"

// CachedStore is a read-through cache in front of another Store.
//
// Put and Delete drop the cached entry before touching the inner store and
// fail if they cannot, so a failed write leaves store and cache agreeing and
// can simply be retried. After the inner write the entry is dropped again,
// falling back to writing the new value through. A per-key generation stops
// a read that started before a write from caching the value it replaced.
// Read-side cache failures are logged and fall back to the inner store.
type CachedStore struct {
	inner  Store
	cache  cache.Cache
	keyer  cache.Keyer
	ttl    time.Duration
	logger *log.Logger

	mu  sync.Mutex
	gen map[string]uint64
}

// NewCachedStore wraps inner. A nil cache disables caching, a nil keyer uses
// cache.DefaultKeyer and a non-positive ttl uses cache.TTLLayout.
func NewCachedStore(inner Store, c cache.Cache, keyer cache.Keyer, ttl time.Duration, logger *log.Logger) *CachedStore {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if ttl <= 0 {
		ttl = cache.TTLLayout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &CachedStore{inner: inner, cache: c, keyer: keyer, ttl: ttl, logger: logger, gen: make(map[string]uint64)}
}

func (s *CachedStore) key(k Key) string {
	return s.keyer.LayoutKey(string(k.Kind), k.Ref())
}

func (s *CachedStore) generation(ck string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen[ck]
}

func (s *CachedStore) Get(ctx context.Context, key Key) (*Layout, error) {
	ck := s.key(key)
	data, hit, err := s.cache.Get(ctx, ck)
	if err != nil {
		s.logger.Warn("layout cache read failed", "key", key.String(), "err", err)
	}
	if hit {
		var l Layout
		if err := json.Unmarshal(data, &l); err == nil {
			observability.Cache().OnCacheHit(ctx, cacheKeyType)
			return &l, nil
		}
		_ = s.cache.Delete(ctx, ck)
	}
	observability.Cache().OnCacheMiss(ctx, cacheKeyType)

	seen := s.generation(ck)
	l, err := s.inner.Get(ctx, key)
	if err != nil || l == nil {
		return l, err
	}
	data, err = json.Marshal(l)
	if err != nil {
		return l, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[ck] != seen {
		// A write landed while we read; what we hold may be stale.
		return l, nil
	}
	if err := s.cache.Set(ctx, ck, data, s.ttl); err != nil {
		s.logger.Warn("layout cache write failed", "key", key.String(), "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, cacheKeyType, len(data))
	}
	return l, nil
}

func (s *CachedStore) Put(ctx context.Context, l *Layout) error {
	ck := s.key(l.Key)
	if err := s.cache.Delete(ctx, ck); err != nil {
		return fmt.Errorf("invalidate cached layout %s: %w", l.Key, err)
	}
	if err := s.inner.Put(ctx, l); err != nil {
		return err
	}
	data, _ := json.Marshal(l)
	return s.settle(ctx, l.Key, data)
}

func (s *CachedStore) Delete(ctx context.Context, key Key) error {
	if err := s.cache.Delete(ctx, s.key(key)); err != nil {
		return fmt.Errorf("invalidate cached layout %s: %w", key, err)
	}
	if err := s.inner.Delete(ctx, key); err != nil {
		return err
	}
	return s.settle(ctx, key, nil)
}

// settle bumps the key's generation and drops the cached entry after a
// write reached the inner store. If the drop fails, data (when given) is
// written through instead so readers still see the new value.
func (s *CachedStore) settle(ctx context.Context, key Key, data []byte) error {
	ck := s.key(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen[ck]++

	err := s.cache.Delete(ctx, ck)
	if err == nil {
		return nil
	}
	if data != nil {
		if setErr := s.cache.Set(ctx, ck, data, s.ttl); setErr == nil {
			s.logger.Warn("layout cache invalidation failed, wrote through", "key", key.String(), "err", err)
			return nil
		}
	}
	return fmt.Errorf("invalidate cached layout %s: %w", key, err)
}

// List bypasses the cache.
func (s *CachedStore) List(ctx context.Context, kind Kind) ([]*Layout, error) {
	return s.inner.List(ctx, kind)
}

// Close closes the inner store. The cache is owned by the caller.
func (s *CachedStore) Close() error {
	return s.inner.Close()
}

var _ Store = (*CachedStore)(nil)
