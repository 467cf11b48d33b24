package mongo

import (
	"context"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/appmap/pkg/catalog"
	"github.com/matzehuels/appmap/pkg/errors"
)

// Catalog is a catalog.Repository backed by MongoDB.
type Catalog struct {
	db *DB
}

// NewCatalog returns the catalog repository over db.
func NewCatalog(db *DB) *Catalog {
	return &Catalog{db: db}
}

// =============================================================================
// Filters
// =============================================================================

var (
	byName = options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	byID   = options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
)

func idFilter(id int64) bson.M { return bson.M{"_id": id} }

func idsFilter(ids []int64) bson.M { return bson.M{"_id": bson.M{"$in": ids}} }

// touchingFilter matches integrations with either endpoint in ids.
func touchingFilter(ids []int64) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"source_app_id": bson.M{"$in": ids}},
		bson.M{"target_app_id": bson.M{"$in": ids}},
	}}
}

func connectionTypeFilter(id int64) bson.M { return bson.M{"connection_type_id": id} }

// =============================================================================
// Reads
// =============================================================================

func (c *Catalog) Streams(ctx context.Context) ([]catalog.Stream, error) {
	var streams []catalog.Stream
	if err := c.findAll(ctx, CollStreams, bson.M{}, byName, &streams); err != nil {
		return nil, fmt.Errorf("list streams: %w", err)
	}
	var apps []catalog.App
	if err := c.findAll(ctx, CollApps, bson.M{}, byName, &apps); err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	for i := range streams {
		for _, a := range apps {
			if a.StreamID == streams[i].ID {
				a.StreamName = streams[i].Name
				streams[i].Apps = append(streams[i].Apps, a)
			}
		}
	}
	return streams, nil
}

func (c *Catalog) StreamByName(ctx context.Context, name string) (*catalog.Stream, error) {
	var s catalog.Stream
	if err := c.db.coll(CollStreams).FindOne(ctx, bson.M{"name": name}).Decode(&s); err != nil {
		return nil, notFound(err, "stream %q", name)
	}
	return c.withApps(ctx, &s)
}

func (c *Catalog) StreamByID(ctx context.Context, id int64) (*catalog.Stream, error) {
	var s catalog.Stream
	if err := c.db.coll(CollStreams).FindOne(ctx, idFilter(id)).Decode(&s); err != nil {
		return nil, notFound(err, "stream %d", id)
	}
	return c.withApps(ctx, &s)
}

func (c *Catalog) withApps(ctx context.Context, s *catalog.Stream) (*catalog.Stream, error) {
	apps, err := c.AppsByStream(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Apps = apps
	return s, nil
}

func (c *Catalog) AppsByStream(ctx context.Context, streamID int64) ([]catalog.App, error) {
	var apps []catalog.App
	if err := c.findAll(ctx, CollApps, bson.M{"stream_id": streamID}, byName, &apps); err != nil {
		return nil, fmt.Errorf("list apps of stream %d: %w", streamID, err)
	}
	return c.resolve(ctx, apps)
}

func (c *Catalog) App(ctx context.Context, id int64) (*catalog.App, error) {
	var a catalog.App
	if err := c.db.coll(CollApps).FindOne(ctx, idFilter(id)).Decode(&a); err != nil {
		return nil, notFound(err, "app %d", id)
	}
	apps, err := c.resolve(ctx, []catalog.App{a})
	if err != nil {
		return nil, err
	}
	return &apps[0], nil
}

func (c *Catalog) AppsByIDs(ctx context.Context, ids []int64) ([]catalog.App, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var apps []catalog.App
	if err := c.findAll(ctx, CollApps, idsFilter(ids), byName, &apps); err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	return c.resolve(ctx, apps)
}

func (c *Catalog) IntegrationsTouching(ctx context.Context, appIDs []int64) ([]catalog.Integration, error) {
	if len(appIDs) == 0 {
		return nil, nil
	}
	var out []catalog.Integration
	if err := c.findAll(ctx, CollIntegrations, touchingFilter(appIDs), byID, &out); err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	return out, nil
}

func (c *Catalog) Integration(ctx context.Context, id int64) (*catalog.Integration, error) {
	var i catalog.Integration
	if err := c.db.coll(CollIntegrations).FindOne(ctx, idFilter(id)).Decode(&i); err != nil {
		return nil, notFound(err, "integration %d", id)
	}
	return &i, nil
}

func (c *Catalog) ConnectionTypes(ctx context.Context) ([]catalog.ConnectionType, error) {
	var out []catalog.ConnectionType
	if err := c.findAll(ctx, CollConnectionTypes, bson.M{}, byID, &out); err != nil {
		return nil, fmt.Errorf("list connection types: %w", err)
	}
	return out, nil
}

func (c *Catalog) Contracts(ctx context.Context, appID int64) ([]catalog.Contract, error) {
	var out []catalog.Contract
	if err := c.findAll(ctx, CollContracts, bson.M{"app_ids": appID}, byID, &out); err != nil {
		return nil, fmt.Errorf("list contracts of app %d: %w", appID, err)
	}
	return out, nil
}

// =============================================================================
// Writes
// =============================================================================

func (c *Catalog) SaveStream(ctx context.Context, s *catalog.Stream) error {
	if err := errors.ValidateStreamName(s.Name); err != nil {
		return err
	}
	var existing catalog.Stream
	err := c.db.coll(CollStreams).FindOne(ctx, bson.M{"name": s.Name}).Decode(&existing)
	switch {
	case err == nil && existing.ID != s.ID:
		return errors.New(errors.ErrCodeConflict, "stream %q already exists", s.Name)
	case err != nil && err != driver.ErrNoDocuments:
		return fmt.Errorf("check stream name: %w", err)
	}

	id, err := c.db.nextID(ctx, CollStreams, s.ID)
	if err != nil {
		return err
	}
	s.ID = id
	stored := *s
	stored.Apps = nil
	return c.replace(ctx, CollStreams, s.ID, stored)
}

func (c *Catalog) SaveApp(ctx context.Context, a *catalog.App) error {
	if err := a.Validate(); err != nil {
		return err
	}
	stream, err := c.streamName(ctx, a.StreamID)
	if err != nil {
		if errors.Is(err, errors.ErrCodeNotFound) {
			return errors.New(errors.ErrCodeInvalidInput, "stream %d does not exist", a.StreamID)
		}
		return err
	}
	id, err := c.db.nextID(ctx, CollApps, a.ID)
	if err != nil {
		return err
	}
	a.ID = id
	if err := c.replace(ctx, CollApps, a.ID, a); err != nil {
		return err
	}
	a.StreamName = stream
	return nil
}

func (c *Catalog) SaveIntegration(ctx context.Context, i *catalog.Integration) error {
	if err := i.Validate(); err != nil {
		return err
	}
	n, err := c.db.coll(CollApps).CountDocuments(ctx, idsFilter([]int64{i.SourceAppID, i.TargetAppID}))
	if err != nil {
		return fmt.Errorf("check integration apps: %w", err)
	}
	if n != 2 {
		return errors.New(errors.ErrCodeInvalidInput, "apps %d and %d must both exist", i.SourceAppID, i.TargetAppID)
	}
	if i.ConnectionTypeID != nil {
		n, err := c.db.coll(CollConnectionTypes).CountDocuments(ctx, idFilter(*i.ConnectionTypeID))
		if err != nil {
			return fmt.Errorf("check connection type: %w", err)
		}
		if n == 0 {
			return errors.New(errors.ErrCodeInvalidInput, "connection type %d does not exist", *i.ConnectionTypeID)
		}
	}
	if i.Direction == "" {
		i.Direction = catalog.DirectionOneWay
	}
	id, err := c.db.nextID(ctx, CollIntegrations, i.ID)
	if err != nil {
		return err
	}
	i.ID = id
	return c.replace(ctx, CollIntegrations, i.ID, i)
}

func (c *Catalog) SaveConnectionType(ctx context.Context, t *catalog.ConnectionType) error {
	if err := t.Validate(); err != nil {
		return err
	}
	id, err := c.db.nextID(ctx, CollConnectionTypes, t.ID)
	if err != nil {
		return err
	}
	t.ID = id
	return c.replace(ctx, CollConnectionTypes, t.ID, t)
}

func (c *Catalog) SaveContract(ctx context.Context, k *catalog.Contract) error {
	if err := k.Validate(); err != nil {
		return err
	}
	id, err := c.db.nextID(ctx, CollContracts, k.ID)
	if err != nil {
		return err
	}
	k.ID = id
	stored := *k
	stored.AppIDs = slices.Clone(k.AppIDs)
	if stored.AppIDs == nil {
		stored.AppIDs = []int64{}
	}
	return c.replace(ctx, CollContracts, k.ID, stored)
}

// DeleteApp removes the app's integrations and contract links before the
// app itself, so a failure part way leaves the app in place for a retry.
func (c *Catalog) DeleteApp(ctx context.Context, id int64) error {
	if _, err := c.db.coll(CollIntegrations).DeleteMany(ctx, touchingFilter([]int64{id})); err != nil {
		return fmt.Errorf("delete integrations of app %d: %w", id, err)
	}
	pull := bson.M{"$pull": bson.M{"app_ids": id}}
	if _, err := c.db.coll(CollContracts).UpdateMany(ctx, bson.M{"app_ids": id}, pull); err != nil {
		return fmt.Errorf("detach contracts of app %d: %w", id, err)
	}
	res, err := c.db.coll(CollApps).DeleteOne(ctx, idFilter(id))
	if err != nil {
		return fmt.Errorf("delete app %d: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return errors.New(errors.ErrCodeNotFound, "app %d not found", id)
	}
	return nil
}

func (c *Catalog) DeleteStream(ctx context.Context, id int64) error {
	name, err := c.streamName(ctx, id)
	if err != nil {
		return err
	}
	n, err := c.db.coll(CollApps).CountDocuments(ctx, bson.M{"stream_id": id})
	if err != nil {
		return fmt.Errorf("count apps of stream %d: %w", id, err)
	}
	if n > 0 {
		return errors.New(errors.ErrCodeConflict, "stream %q still owns %d apps", name, n)
	}
	if _, err := c.db.coll(CollStreams).DeleteOne(ctx, idFilter(id)); err != nil {
		return fmt.Errorf("delete stream %d: %w", id, err)
	}
	return nil
}

func (c *Catalog) DeleteIntegration(ctx context.Context, id int64) error {
	res, err := c.db.coll(CollIntegrations).DeleteOne(ctx, idFilter(id))
	if err != nil {
		return fmt.Errorf("delete integration %d: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return errors.New(errors.ErrCodeNotFound, "integration %d not found", id)
	}
	return nil
}

func (c *Catalog) DeleteConnectionType(ctx context.Context, id int64) error {
	var t catalog.ConnectionType
	if err := c.db.coll(CollConnectionTypes).FindOne(ctx, idFilter(id)).Decode(&t); err != nil {
		return notFound(err, "connection type %d", id)
	}
	n, err := c.db.coll(CollIntegrations).CountDocuments(ctx, connectionTypeFilter(id))
	if err != nil {
		return fmt.Errorf("count integrations of type %d: %w", id, err)
	}
	if n > 0 {
		return errors.New(errors.ErrCodeConflict, "connection type %q is used by %d integrations", t.Name, n)
	}
	if _, err := c.db.coll(CollConnectionTypes).DeleteOne(ctx, idFilter(id)); err != nil {
		return fmt.Errorf("delete connection type %d: %w", id, err)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func (c *Catalog) findAll(ctx context.Context, coll string, filter bson.M, opts *options.FindOptions, out any) error {
	cur, err := c.db.coll(coll).Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}

func (c *Catalog) replace(ctx context.Context, coll string, id int64, doc any) error {
	_, err := c.db.coll(coll).ReplaceOne(ctx, idFilter(id), doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save %s %d: %w", coll, id, err)
	}
	return nil
}

func (c *Catalog) streamName(ctx context.Context, id int64) (string, error) {
	var s catalog.Stream
	if err := c.db.coll(CollStreams).FindOne(ctx, idFilter(id)).Decode(&s); err != nil {
		return "", notFound(err, "stream %d", id)
	}
	return s.Name, nil
}

// resolve fills StreamName from one streams query.
func (c *Catalog) resolve(ctx context.Context, apps []catalog.App) ([]catalog.App, error) {
	if len(apps) == 0 {
		return apps, nil
	}
	ids := make([]int64, 0, len(apps))
	for _, a := range apps {
		if !slices.Contains(ids, a.StreamID) {
			ids = append(ids, a.StreamID)
		}
	}
	var streams []catalog.Stream
	if err := c.findAll(ctx, CollStreams, idsFilter(ids), byID, &streams); err != nil {
		return nil, fmt.Errorf("resolve stream names: %w", err)
	}
	names := make(map[int64]string, len(streams))
	for _, s := range streams {
		names[s.ID] = s.Name
	}
	for i := range apps {
		apps[i].StreamName = names[apps[i].StreamID]
	}
	return apps, nil
}

var _ catalog.Repository = (*Catalog)(nil)
