package layout

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps layouts in process memory. Values are deep-copied on the
// way in and out so callers can mutate what they get.
type MemoryStore struct {
	mu      sync.RWMutex
	layouts map[Key]*Layout
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{layouts: make(map[Key]*Layout)}
}

func (s *MemoryStore) Get(ctx context.Context, key Key) (*Layout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.layouts[key].Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, l *Layout) error {
	if err := l.Key.check(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layouts[l.Key] = l.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.layouts, key)
	return nil
}

// List returns layouts ordered by key.
func (s *MemoryStore) List(ctx context.Context, kind Kind) ([]*Layout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Layout
	for k, l := range s.layouts {
		if k.Kind == kind {
			out = append(out, l.Clone())
		}
	}
	sortLayouts(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortLayouts(ls []*Layout) {
	sort.Slice(ls, func(i, j int) bool {
		a, b := ls[i].Key, ls[j].Key
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Name < b.Name
	})
}

var _ Store = (*MemoryStore)(nil)
