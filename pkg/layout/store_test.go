package layout

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/appmap/pkg/cache"
)

// storeFactories returns every backend that can run without a server.
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"file": func() Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"cached-file": func() Store {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			c, err := cache.NewFileCache(t.TempDir())
			require.NoError(t, err)
			return NewCachedStore(s, c, nil, time.Minute, nil)
		},
	}
}

func sample(key Key) *Layout {
	return &Layout{
		Key: key,
		NodesLayout: map[string]NodeLayout{
			"1": {Position: &Position{X: 10, Y: 20}, Style: map[string]any{"background": "#eee"}},
		},
		EdgesLayout: []EdgeLayout{{ID: "1-2", Source: "1", Target: "2", Style: map[string]any{"stroke": "#002ac0"}}},
		Config:      map[string]any{"zoom": 1.25},
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer s.Close()

			got, err := s.Get(ctx, StreamKey(1))
			require.NoError(t, err)
			assert.Nil(t, got, "absent layout is nil, not an error")

			require.NoError(t, s.Put(ctx, sample(StreamKey(1))))
			require.NoError(t, s.Put(ctx, sample(StreamNameKey("Sales Platform (Core)"))))
			require.NoError(t, s.Put(ctx, sample(AppKey(3))))

			got, err = s.Get(ctx, StreamKey(1))
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, &Position{X: 10, Y: 20}, got.NodesLayout["1"].Position)
			assert.Equal(t, "#002ac0", got.EdgesLayout[0].Style["stroke"])

			got, err = s.Get(ctx, StreamNameKey("Sales Platform (Core)"))
			require.NoError(t, err)
			require.NotNil(t, got)

			// Upsert replaces.
			updated := sample(StreamKey(1))
			updated.NodesLayout["1"] = NodeLayout{Position: &Position{X: 50, Y: 60}}
			require.NoError(t, s.Put(ctx, updated))
			got, err = s.Get(ctx, StreamKey(1))
			require.NoError(t, err)
			assert.Equal(t, 50.0, got.NodesLayout["1"].Position.X)

			streams, err := s.List(ctx, KindStream)
			require.NoError(t, err)
			assert.Len(t, streams, 1)
			apps, err := s.List(ctx, KindApp)
			require.NoError(t, err)
			assert.Len(t, apps, 1)

			require.NoError(t, s.Delete(ctx, StreamKey(1)))
			require.NoError(t, s.Delete(ctx, StreamKey(1)), "double delete")
			got, err = s.Get(ctx, StreamKey(1))
			require.NoError(t, err)
			assert.Nil(t, got)

			assert.Error(t, s.Put(ctx, sample(StreamKey(0))), "invalid key")
		})
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	l := sample(StreamKey(1))
	require.NoError(t, s.Put(ctx, l))
	l.NodesLayout["1"].Position.X = 999

	got, _ := s.Get(ctx, StreamKey(1))
	got.Config["zoom"] = 3.0
	again, _ := s.Get(ctx, StreamKey(1))

	assert.Equal(t, 10.0, again.NodesLayout["1"].Position.X)
	assert.Equal(t, 1.25, again.Config["zoom"])
}

func TestFileStoreCorruptFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "stream", "4.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))

	_, err = s.Get(ctx, StreamKey(4))
	assert.Error(t, err)
	assert.Equal(t, dir, s.Path())
}

type countingStore struct {
	Store
	gets int
}

func (c *countingStore) Get(ctx context.Context, key Key) (*Layout, error) {
	c.gets++
	return c.Store.Get(ctx, key)
}

func TestCachedStoreReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: NewMemoryStore()}
	c, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	s := NewCachedStore(inner, c, cache.NewScopedKeyer(nil, "test:"), time.Minute, nil)

	require.NoError(t, s.Put(ctx, sample(StreamKey(1))))

	for i := 0; i < 3; i++ {
		got, err := s.Get(ctx, StreamKey(1))
		require.NoError(t, err)
		require.NotNil(t, got)
	}
	assert.Equal(t, 1, inner.gets, "later reads are served from cache")

	updated := sample(StreamKey(1))
	updated.Config["zoom"] = 2.0
	require.NoError(t, s.Put(ctx, updated))
	got, err := s.Get(ctx, StreamKey(1))
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Config["zoom"], "Put invalidates")
	assert.Equal(t, 2, inner.gets)

	require.NoError(t, s.Delete(ctx, StreamKey(1)))
	got, err = s.Get(ctx, StreamKey(1))
	require.NoError(t, err)
	assert.Nil(t, got, "Delete invalidates")
}

// mapCache is an in-process cache whose Delete can be made to fail.
type mapCache struct {
	mu         sync.Mutex
	data       map[string][]byte
	failDelete bool
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failDelete {
		return stderrors.New("connection refused")
	}
	delete(c.data, key)
	return nil
}

func (c *mapCache) Close() error { return nil }

func TestCachedStoreInvalidationFailure(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	layouts := NewLayouts(NewCachedStore(NewMemoryStore(), c, nil, time.Minute, nil), nil, nil)

	_, err := layouts.UpsertByStreamID(ctx, 1, &Layout{
		NodesLayout: map[string]NodeLayout{"1": {}, "5": {}},
		EdgesLayout: []EdgeLayout{{ID: "5-1"}},
	})
	require.NoError(t, err)
	warm, err := layouts.GetByStreamID(ctx, 1)
	require.NoError(t, err)
	require.Contains(t, warm.NodesLayout, "5")

	c.failDelete = true
	_, err = layouts.DeleteAppReferences(ctx, 5)
	require.Error(t, err, "cleanup must not report success while the cache still holds the old layout")

	got, err := layouts.GetByStreamID(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, got.NodesLayout, "5", "store and cache still agree")

	c.failDelete = false
	changed, err := layouts.DeleteAppReferences(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	got, err = layouts.GetByStreamID(ctx, 1)
	require.NoError(t, err)
	assert.NotContains(t, got.NodesLayout, "5")
	assert.Empty(t, got.EdgesLayout)
}

// racingStore runs during once, after reading and before returning, to model
// a write that lands while a cache miss is being served.
type racingStore struct {
	Store
	during func()
}

func (r *racingStore) Get(ctx context.Context, key Key) (*Layout, error) {
	l, err := r.Store.Get(ctx, key)
	if f := r.during; f != nil {
		r.during = nil
		f()
	}
	return l, err
}

func TestCachedStoreMissDoesNotCacheReplacedValue(t *testing.T) {
	ctx := context.Background()
	inner := &racingStore{Store: NewMemoryStore()}
	s := NewCachedStore(inner, newMapCache(), nil, time.Minute, nil)

	require.NoError(t, inner.Store.Put(ctx, sample(StreamKey(1))))

	updated := sample(StreamKey(1))
	updated.Config["zoom"] = 2.0
	inner.during = func() { require.NoError(t, s.Put(ctx, updated)) }

	stale, err := s.Get(ctx, StreamKey(1))
	require.NoError(t, err)
	assert.Equal(t, 1.25, stale.Config["zoom"], "the racing read returns what it read")

	got, err := s.Get(ctx, StreamKey(1))
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Config["zoom"], "but must not have cached it")
}
