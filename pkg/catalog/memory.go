package catalog

import (
	"context"
	"slices"
	"sync"

	"github.com/matzehuels/appmap/pkg/errors"
)

// Memory is an in-process [Repository].
// It is safe for concurrent use; every read returns copies.
type Memory struct {
	mu           sync.RWMutex
	streams      map[int64]Stream
	apps         map[int64]App
	integrations map[int64]Integration
	types        map[int64]ConnectionType
	contracts    map[int64]Contract
	lastID       int64
}

// NewMemory creates an empty repository.
func NewMemory() *Memory {
	return &Memory{
		streams:      make(map[int64]Stream),
		apps:         make(map[int64]App),
		integrations: make(map[int64]Integration),
		types:        make(map[int64]ConnectionType),
		contracts:    make(map[int64]Contract),
	}
}

func (m *Memory) nextID(id int64) int64 {
	if id > 0 {
		if id > m.lastID {
			m.lastID = id
		}
		return id
	}
	m.lastID++
	return m.lastID
}

// =============================================================================
// Reads
// =============================================================================

// Streams returns every stream ordered by name.
func (m *Memory) Streams(ctx context.Context) ([]Stream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Stream, 0, len(m.streams))
	for _, s := range m.streams {
		out = append(out, m.withApps(s))
	}
	slices.SortFunc(out, func(a, b Stream) int {
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}

// StreamByName returns the named stream with its apps.
func (m *Memory) StreamByName(ctx context.Context, name string) (*Stream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.streams {
		if s.Name == name {
			out := m.withApps(s)
			return &out, nil
		}
	}
	return nil, errors.New(errors.ErrCodeNotFound, "stream %q not found", name)
}

// StreamByID returns the stream with its apps.
func (m *Memory) StreamByID(ctx context.Context, id int64) (*Stream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.streams[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "stream %d not found", id)
	}
	out := m.withApps(s)
	return &out, nil
}

// AppsByStream returns the apps of a stream ordered by name.
func (m *Memory) AppsByStream(ctx context.Context, streamID int64) ([]App, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.appsOf(streamID), nil
}

// App returns one app.
func (m *Memory) App(ctx context.Context, id int64) (*App, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.apps[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "app %d not found", id)
	}
	out := m.resolve(a)
	return &out, nil
}

// AppsByIDs returns the known apps among ids, in ids order.
func (m *Memory) AppsByIDs(ctx context.Context, ids []int64) ([]App, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]App, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if a, ok := m.apps[id]; ok {
			out = append(out, m.resolve(a))
		}
	}
	return out, nil
}

// IntegrationsTouching returns integrations with an endpoint in appIDs.
func (m *Memory) IntegrationsTouching(ctx context.Context, appIDs []int64) ([]Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[int64]bool, len(appIDs))
	for _, id := range appIDs {
		want[id] = true
	}
	var out []Integration
	for _, i := range m.integrations {
		if want[i.SourceAppID] || want[i.TargetAppID] {
			out = append(out, i)
		}
	}
	sortIntegrations(out)
	return out, nil
}

// Integration returns one integration.
func (m *Memory) Integration(ctx context.Context, id int64) (*Integration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.integrations[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "integration %d not found", id)
	}
	return &i, nil
}

// ConnectionTypes returns every connection type ordered by id.
func (m *Memory) ConnectionTypes(ctx context.Context) ([]ConnectionType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ConnectionType, 0, len(m.types))
	for _, t := range m.types {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b ConnectionType) int { return cmpID(a.ID, b.ID) })
	return out, nil
}

// Contracts returns contracts covering appID ordered by id.
func (m *Memory) Contracts(ctx context.Context, appID int64) ([]Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Contract
	for _, c := range m.contracts {
		if c.Covers(appID) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b Contract) int { return cmpID(a.ID, b.ID) })
	return out, nil
}

// =============================================================================
// Writes
// =============================================================================

// SaveStream inserts or updates a stream. Stream names are unique.
func (m *Memory) SaveStream(ctx context.Context, s *Stream) error {
	if err := errors.ValidateStreamName(s.Name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.streams {
		if other.Name == s.Name && other.ID != s.ID {
			return errors.New(errors.ErrCodeConflict, "stream %q already exists", s.Name)
		}
	}
	s.ID = m.nextID(s.ID)
	stored := *s
	stored.Apps = nil
	m.streams[s.ID] = stored
	return nil
}

// SaveApp inserts or updates an app.
func (m *Memory) SaveApp(ctx context.Context, a *App) error {
	if err := a.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.streams[a.StreamID]; !ok {
		return errors.New(errors.ErrCodeInvalidInput, "stream %d does not exist", a.StreamID)
	}
	a.ID = m.nextID(a.ID)
	stored := *a
	stored.StreamName = ""
	m.apps[a.ID] = stored
	a.StreamName = m.streams[a.StreamID].Name
	return nil
}

// SaveIntegration inserts or updates an integration.
func (m *Memory) SaveIntegration(ctx context.Context, i *Integration) error {
	if err := i.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range []int64{i.SourceAppID, i.TargetAppID} {
		if _, ok := m.apps[id]; !ok {
			return errors.New(errors.ErrCodeInvalidInput, "app %d does not exist", id)
		}
	}
	if i.ConnectionTypeID != nil {
		if _, ok := m.types[*i.ConnectionTypeID]; !ok {
			return errors.New(errors.ErrCodeInvalidInput, "connection type %d does not exist", *i.ConnectionTypeID)
		}
	}
	if i.Direction == "" {
		i.Direction = DirectionOneWay
	}
	i.ID = m.nextID(i.ID)
	m.integrations[i.ID] = *i
	return nil
}

// SaveConnectionType inserts or updates a connection type.
func (m *Memory) SaveConnectionType(ctx context.Context, c *ConnectionType) error {
	if err := c.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = m.nextID(c.ID)
	m.types[c.ID] = *c
	return nil
}

// SaveContract inserts or updates a contract.
func (m *Memory) SaveContract(ctx context.Context, c *Contract) error {
	if err := c.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c.ID = m.nextID(c.ID)
	stored := *c
	stored.AppIDs = slices.Clone(c.AppIDs)
	stored.Periods = slices.Clone(c.Periods)
	m.contracts[c.ID] = stored
	return nil
}

// DeleteApp removes an app, the integrations touching it and its contract links.
func (m *Memory) DeleteApp(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.apps[id]; !ok {
		return errors.New(errors.ErrCodeNotFound, "app %d not found", id)
	}
	delete(m.apps, id)
	for iid, i := range m.integrations {
		if i.Touches(id) {
			delete(m.integrations, iid)
		}
	}
	for cid, c := range m.contracts {
		if c.Covers(id) {
			c.AppIDs = slices.DeleteFunc(slices.Clone(c.AppIDs), func(v int64) bool { return v == id })
			m.contracts[cid] = c
		}
	}
	return nil
}

// DeleteStream removes a stream that owns no apps.
func (m *Memory) DeleteStream(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[id]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "stream %d not found", id)
	}
	if n := len(m.appsOf(id)); n > 0 {
		return errors.New(errors.ErrCodeConflict, "stream %q still owns %d apps", s.Name, n)
	}
	delete(m.streams, id)
	return nil
}

// DeleteIntegration removes one integration.
func (m *Memory) DeleteIntegration(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.integrations[id]; !ok {
		return errors.New(errors.ErrCodeNotFound, "integration %d not found", id)
	}
	delete(m.integrations, id)
	return nil
}

// DeleteConnectionType removes a connection type no integration references.
func (m *Memory) DeleteConnectionType(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.types[id]
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "connection type %d not found", id)
	}
	inUse := 0
	for _, i := range m.integrations {
		if i.ConnectionTypeID != nil && *i.ConnectionTypeID == id {
			inUse++
		}
	}
	if inUse > 0 {
		return errors.New(errors.ErrCodeConflict, "connection type %q is used by %d integrations", t.Name, inUse)
	}
	delete(m.types, id)
	return nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

// appsOf returns resolved apps of a stream. Caller holds the lock.
func (m *Memory) appsOf(streamID int64) []App {
	var out []App
	for _, a := range m.apps {
		if a.StreamID == streamID {
			out = append(out, m.resolve(a))
		}
	}
	SortApps(out)
	return out
}

// withApps returns a copy of s with Apps populated. Caller holds the lock.
func (m *Memory) withApps(s Stream) Stream {
	s.Apps = m.appsOf(s.ID)
	return s
}

// resolve fills StreamName and detaches slices. Caller holds the lock.
func (m *Memory) resolve(a App) App {
	a.StreamName = m.streams[a.StreamID].Name
	a.Technologies = slices.Clone(a.Technologies)
	a.Functions = slices.Clone(a.Functions)
	return a
}

func sortIntegrations(in []Integration) {
	slices.SortFunc(in, func(a, b Integration) int { return cmpID(a.ID, b.ID) })
}

func cmpID(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Ensure Memory implements Repository.
var _ Repository = (*Memory)(nil)
