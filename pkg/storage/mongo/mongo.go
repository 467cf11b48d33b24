// Package mongo stores the catalog and diagram layouts in MongoDB.
//
// Collections:
//   - streams, apps, integrations, connection_types, contracts: catalog
//     records keyed by numeric _id
//   - layouts: one document per layout key, _id "kind:ref"
//   - counters: id sequences for records saved without an id
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/matzehuels/appmap/pkg/cache"
	"github.com/matzehuels/appmap/pkg/errors"
)

// Collection names.
const (
	CollStreams         = "streams"
	CollApps            = "apps"
	CollIntegrations    = "integrations"
	CollConnectionTypes = "connection_types"
	CollContracts       = "contracts"
	CollLayouts         = "layouts"
	CollCounters        = "counters"
)

// DB is a connected database handle shared by the catalog and layout store.
type DB struct {
	client *driver.Client
	db     *driver.Database
	logger *log.Logger
}

// Connect dials uri, pings the primary and ensures indexes. Transient
// connection failures are retried with cache.RetryWithBackoff.
func Connect(ctx context.Context, uri, database string, logger *log.Logger) (*DB, error) {
	if uri == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "mongo uri is required")
	}
	if database == "" {
		database = "appmap"
	}
	if logger == nil {
		logger = log.Default()
	}

	client, err := driver.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	err = cache.RetryWithBackoff(ctx, func() error {
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			logger.Debug("mongo ping failed", "err", err)
			return cache.Retryable(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	d := &DB{client: client, db: client.Database(database), logger: logger}
	if err := d.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	logger.Debug("connected to mongo", "database", database)
	return d, nil
}

// Close disconnects the client.
func (d *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}

func (d *DB) coll(name string) *driver.Collection {
	return d.db.Collection(name)
}

func (d *DB) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  string
		model driver.IndexModel
	}{
		{CollStreams, driver.IndexModel{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{CollApps, driver.IndexModel{Keys: bson.D{{Key: "stream_id", Value: 1}, {Key: "name", Value: 1}}}},
		{CollIntegrations, driver.IndexModel{Keys: bson.D{{Key: "source_app_id", Value: 1}}}},
		{CollIntegrations, driver.IndexModel{Keys: bson.D{{Key: "target_app_id", Value: 1}}}},
		{CollContracts, driver.IndexModel{Keys: bson.D{{Key: "app_ids", Value: 1}}}},
		{CollLayouts, driver.IndexModel{Keys: bson.D{{Key: "key.kind", Value: 1}}}},
	}
	for _, ix := range indexes {
		if _, err := d.coll(ix.coll).Indexes().CreateOne(ctx, ix.model); err != nil {
			return fmt.Errorf("create index on %s: %w", ix.coll, err)
		}
	}
	return nil
}

// nextID returns explicit when positive, advancing the sequence past it;
// otherwise it allocates the next value of the sequence.
func (d *DB) nextID(ctx context.Context, seq string, explicit int64) (int64, error) {
	update := bson.M{"$inc": bson.M{"seq": int64(1)}}
	if explicit > 0 {
		update = bson.M{"$max": bson.M{"seq": explicit}}
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := d.coll(CollCounters).FindOneAndUpdate(ctx, bson.M{"_id": seq}, update, opts).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("allocate %s id: %w", seq, err)
	}
	if explicit > 0 {
		return explicit, nil
	}
	return doc.Seq, nil
}

// notFound maps ErrNoDocuments to a NOT_FOUND coded error.
func notFound(err error, format string, args ...any) error {
	if err == driver.ErrNoDocuments {
		return errors.New(errors.ErrCodeNotFound, format+" not found", args...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
