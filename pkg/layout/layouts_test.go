package layout

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/errors"
)

// streamIDs resolves a fixed name table.
func streamIDs(ids map[string]int64) StreamResolver {
	return StreamResolverFunc(func(_ context.Context, name string) (int64, error) {
		if id, ok := ids[name]; ok {
			return id, nil
		}
		return 0, errors.New(errors.ErrCodeNotFound, "stream %q not found", name)
	})
}

func newLayouts(t *testing.T) (*Layouts, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	ls := NewLayouts(store, streamIDs(map[string]int64{"sp": 1, "mi": 2}), nil)
	ls.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return ls, store
}

func positioned(nodes map[string]Position) *Layout {
	l := &Layout{NodesLayout: map[string]NodeLayout{}}
	for id, p := range nodes {
		p := p
		l.NodesLayout[id] = NodeLayout{Position: &p}
	}
	return l
}

func TestUpsertByStreamNameStoresUnderID(t *testing.T) {
	ctx := context.Background()
	ls, store := newLayouts(t)

	saved, err := ls.UpsertByStreamName(ctx, "sp", positioned(map[string]Position{"1": {X: 1, Y: 2}}))
	require.NoError(t, err)
	assert.Equal(t, StreamKey(1), saved.Key)

	byID, err := ls.GetByStreamID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, 1.0, byID.NodesLayout["1"].Position.X)

	legacy, err := store.Get(ctx, StreamNameKey("sp"))
	require.NoError(t, err)
	assert.Nil(t, legacy)
}

func TestGetByStreamNameFallsBackToLegacy(t *testing.T) {
	ctx := context.Background()
	ls, store := newLayouts(t)

	old := positioned(map[string]Position{"5": {X: 120, Y: 80}})
	old.Key = StreamNameKey("sp")
	require.NoError(t, store.Put(ctx, old))

	got, err := ls.GetByStreamName(ctx, "sp")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StreamNameKey("sp"), got.Key)

	// Saving by name migrates the record to the id key.
	_, err = ls.UpsertByStreamName(ctx, "sp", got)
	require.NoError(t, err)

	migrated, err := store.Get(ctx, StreamKey(1))
	require.NoError(t, err)
	require.NotNil(t, migrated)
	assert.Equal(t, 120.0, migrated.NodesLayout["5"].Position.X)
	legacy, _ := store.Get(ctx, StreamNameKey("sp"))
	assert.Nil(t, legacy)
}

func TestUnknownStreamNameUsesLegacyKey(t *testing.T) {
	ctx := context.Background()
	ls, store := newLayouts(t)

	saved, err := ls.UpsertByStreamName(ctx, "archived", positioned(nil))
	require.NoError(t, err)
	assert.Equal(t, StreamNameKey("archived"), saved.Key)

	got, err := ls.GetByStreamName(ctx, "archived")
	require.NoError(t, err)
	assert.NotNil(t, got)

	all, _ := store.List(ctx, KindStreamName)
	assert.Len(t, all, 1)
}

func TestGetAbsentLayoutIsNil(t *testing.T) {
	ctx := context.Background()
	ls, _ := newLayouts(t)

	l, err := ls.GetByStreamName(ctx, "mi")
	assert.NoError(t, err)
	assert.Nil(t, l)

	l, err = ls.GetByAppID(ctx, 42)
	assert.NoError(t, err)
	assert.Nil(t, l)
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ls, store := newLayouts(t)

	in := positioned(map[string]Position{"1": {X: 3, Y: 4}})
	in.Config = map[string]any{ConfigTotalNodes: 1}

	_, err := ls.UpsertByAppID(ctx, 9, in)
	require.NoError(t, err)
	first, _ := store.Get(ctx, AppKey(9))
	_, err = ls.UpsertByAppID(ctx, 9, in)
	require.NoError(t, err)
	second, _ := store.Get(ctx, AppKey(9))

	assert.Equal(t, first, second)
	all, _ := store.List(ctx, KindApp)
	assert.Len(t, all, 1)
}

func TestUpsertDoesNotAliasInput(t *testing.T) {
	ctx := context.Background()
	ls, store := newLayouts(t)

	in := positioned(map[string]Position{"1": {X: 3, Y: 4}})
	_, err := ls.UpsertByStreamID(ctx, 1, in)
	require.NoError(t, err)
	in.NodesLayout["1"].Position.X = 100

	got, _ := store.Get(ctx, StreamKey(1))
	assert.Equal(t, 3.0, got.NodesLayout["1"].Position.X)
	assert.Equal(t, Key{}, in.Key, "input key untouched")
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) Put(context.Context, *Layout) error {
	return stderrors.New("disk full")
}

func TestSaveFailureIsLayoutSaveFailed(t *testing.T) {
	ctx := context.Background()
	ls := NewLayouts(failingStore{NewMemoryStore()}, nil, nil)

	_, err := ls.UpsertByStreamID(ctx, 1, positioned(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeLayoutSaveFailed))
	assert.Contains(t, err.Error(), "disk full")

	_, err = ls.UpsertByAppID(ctx, 0, positioned(nil))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestDeleteAppReferences(t *testing.T) {
	ctx := context.Background()
	ls, store := newLayouts(t)

	sp := positioned(map[string]Position{"sp": {}, "1": {X: 1}, "5": {X: 120, Y: 80}})
	sp.EdgesLayout = []EdgeLayout{{ID: "1-5"}, {ID: "5-1", Source: "5", Target: "1"}}
	sp.Config = map[string]any{ConfigTotalNodes: 3, ConfigTotalEdges: 2, "zoom": 1}
	_, err := ls.UpsertByStreamID(ctx, 1, sp)
	require.NoError(t, err)

	legacy := positioned(map[string]Position{"5": {}})
	legacy.Key = StreamNameKey("old")
	require.NoError(t, store.Put(ctx, legacy))

	untouched := positioned(map[string]Position{"7": {X: 7}})
	_, err = ls.UpsertByStreamID(ctx, 2, untouched)
	require.NoError(t, err)
	before, _ := store.Get(ctx, StreamKey(2))

	partner := positioned(map[string]Position{"8": {}, "5": {}})
	partner.EdgesLayout = []EdgeLayout{{ID: "8-5"}}
	_, err = ls.UpsertByAppID(ctx, 8, partner)
	require.NoError(t, err)
	_, err = ls.UpsertByAppID(ctx, 5, positioned(map[string]Position{"5": {}}))
	require.NoError(t, err)

	ls.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	changed, err := ls.DeleteAppReferences(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 4, changed, "stream 1, legacy, app 8 pruned and app 5 deleted")

	for _, kind := range []Kind{KindStream, KindStreamName, KindApp} {
		all, err := store.List(ctx, kind)
		require.NoError(t, err)
		for _, l := range all {
			assert.NotContains(t, l.NodesLayout, "5", l.Key.String())
			for _, e := range l.EdgesLayout {
				src, tgt := e.Endpoints()
				assert.NotEqual(t, "5", src, l.Key.String())
				assert.NotEqual(t, "5", tgt, l.Key.String())
			}
		}
	}

	got, _ := store.Get(ctx, StreamKey(1))
	assert.Equal(t, 2, got.Config[ConfigTotalNodes])
	assert.Equal(t, 0, got.Config[ConfigTotalEdges])
	assert.Equal(t, 1, got.Config["zoom"])

	own, _ := store.Get(ctx, AppKey(5))
	assert.Nil(t, own)

	after, _ := store.Get(ctx, StreamKey(2))
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt, "unchanged layouts are not rewritten")

	changed, err = ls.DeleteAppReferences(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestDeleteEdgeAndStream(t *testing.T) {
	ctx := context.Background()
	ls, store := newLayouts(t)

	l := positioned(map[string]Position{"1": {}, "3": {}})
	l.EdgesLayout = []EdgeLayout{{ID: "3-1"}, {ID: "1-3"}}
	_, err := ls.UpsertByStreamID(ctx, 1, l)
	require.NoError(t, err)

	n, err := ls.DeleteEdge(ctx, "3-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, _ := store.Get(ctx, StreamKey(1))
	assert.Len(t, got.EdgesLayout, 1)

	legacy := positioned(nil)
	legacy.Key = StreamNameKey("sp")
	require.NoError(t, store.Put(ctx, legacy))

	require.NoError(t, ls.DeleteStream(ctx, 1, "sp"))
	a, _ := store.Get(ctx, StreamKey(1))
	b, _ := store.Get(ctx, StreamNameKey("sp"))
	assert.Nil(t, a)
	assert.Nil(t, b)
}

func TestCatalogResolver(t *testing.T) {
	ctx := context.Background()
	m := catalog.NewMemory()
	require.NoError(t, m.SaveStream(ctx, &catalog.Stream{ID: 4, Name: "ops"}))

	r := CatalogResolver(m)
	id, err := r.StreamIDByName(ctx, "ops")
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)

	_, err = r.StreamIDByName(ctx, "nope")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestPruneStale(t *testing.T) {
	ctx := context.Background()
	ls, store := newLayouts(t)

	m := catalog.NewMemory()
	require.NoError(t, m.SaveStream(ctx, &catalog.Stream{ID: 1, Name: "sp"}))
	require.NoError(t, m.SaveApp(ctx, &catalog.App{ID: 1, Name: "Billing", StreamID: 1}))
	require.NoError(t, m.SaveApp(ctx, &catalog.App{ID: 2, Name: "Accounts", StreamID: 1}))
	require.NoError(t, m.SaveIntegration(ctx, &catalog.Integration{ID: 1, SourceAppID: 2, TargetAppID: 1}))

	sp := positioned(map[string]Position{"sp": {}, "1": {X: 1}, "2": {X: 2}, "9": {X: 9}})
	sp.EdgesLayout = []EdgeLayout{{ID: "2-1"}, {ID: "1-2"}, {ID: "9-1"}}
	_, err := ls.UpsertByStreamID(ctx, 1, sp)
	require.NoError(t, err)

	_, err = ls.UpsertByAppID(ctx, 9, positioned(map[string]Position{"9": {}}))
	require.NoError(t, err)

	own := positioned(map[string]Position{"1": {}, "2": {}})
	own.EdgesLayout = []EdgeLayout{{ID: "2-1"}}
	_, err = ls.UpsertByAppID(ctx, 1, own)
	require.NoError(t, err)
	before, _ := store.Get(ctx, AppKey(1))

	ls.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	changed, err := ls.PruneStale(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, 2, changed, "stream 1 rewritten and app 9 deleted")

	got, _ := store.Get(ctx, StreamKey(1))
	require.NotNil(t, got)
	assert.Len(t, got.NodesLayout, 3)
	assert.Contains(t, got.NodesLayout, "sp")
	assert.NotContains(t, got.NodesLayout, "9")
	require.Len(t, got.EdgesLayout, 1)
	assert.Equal(t, "2-1", got.EdgesLayout[0].ID)

	gone, _ := store.Get(ctx, AppKey(9))
	assert.Nil(t, gone)

	after, _ := store.Get(ctx, AppKey(1))
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	changed, err = ls.PruneStale(ctx, m)
	require.NoError(t, err)
	assert.Zero(t, changed)
}
