package mongo

import (
	"context"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/appmap/pkg/layout"
)

// LayoutStore is a layout.Store backed by the layouts collection.
type LayoutStore struct {
	db *DB
}

// NewLayoutStore returns the layout store over db.
func NewLayoutStore(db *DB) *LayoutStore {
	return &LayoutStore{db: db}
}

type layoutDoc struct {
	ID            string `bson:"_id"`
	layout.Layout `bson:",inline"`
}

func layoutDocID(key layout.Key) string {
	return key.String()
}

func kindFilter(kind layout.Kind) bson.M {
	return bson.M{"key.kind": string(kind)}
}

func (s *LayoutStore) Get(ctx context.Context, key layout.Key) (*layout.Layout, error) {
	var doc layoutDoc
	err := s.db.coll(CollLayouts).FindOne(ctx, bson.M{"_id": layoutDocID(key)}).Decode(&doc)
	if err == driver.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get layout %s: %w", key, err)
	}
	return normalize(&doc.Layout)
}

func (s *LayoutStore) Put(ctx context.Context, l *layout.Layout) error {
	if err := l.Key.Validate(); err != nil {
		return err
	}
	doc := layoutDoc{ID: layoutDocID(l.Key), Layout: *l}
	_, err := s.db.coll(CollLayouts).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put layout %s: %w", l.Key, err)
	}
	return nil
}

func (s *LayoutStore) Delete(ctx context.Context, key layout.Key) error {
	if _, err := s.db.coll(CollLayouts).DeleteOne(ctx, bson.M{"_id": layoutDocID(key)}); err != nil {
		return fmt.Errorf("delete layout %s: %w", key, err)
	}
	return nil
}

func (s *LayoutStore) List(ctx context.Context, kind layout.Kind) ([]*layout.Layout, error) {
	opts := options.Find().SetSort(bson.D{{Key: "key.id", Value: 1}, {Key: "key.name", Value: 1}})
	cur, err := s.db.coll(CollLayouts).Find(ctx, kindFilter(kind), opts)
	if err != nil {
		return nil, fmt.Errorf("list %s layouts: %w", kind, err)
	}
	var docs []layoutDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list %s layouts: %w", kind, err)
	}
	out := make([]*layout.Layout, 0, len(docs))
	for i := range docs {
		l, err := normalize(&docs[i].Layout)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// Close is a no-op; the DB is closed by its owner.
func (s *LayoutStore) Close() error { return nil }

// normalize converts BSON-decoded free-form maps (primitive.A arrays, int32
// numbers) into the JSON shapes the rest of the module works with.
func normalize(l *layout.Layout) (*layout.Layout, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("normalize layout %s: %w", l.Key, err)
	}
	var out layout.Layout
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("normalize layout %s: %w", l.Key, err)
	}
	return &out, nil
}

var _ layout.Store = (*LayoutStore)(nil)
