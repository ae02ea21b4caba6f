package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps each collection in a Mongo collection keyed by _id.
// Batches run in a multi-document transaction when the deployment supports it.
type MongoStore struct {
	client          *mongo.Client
	db              *mongo.Database
	useTransactions bool
	now             Clock
}

func NewMongoStore(client *mongo.Client, dbName string, useTransactions bool) *MongoStore {
	return &MongoStore{
		client:          client,
		db:              client.Database(dbName),
		useTransactions: useTransactions,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (m *MongoStore) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	var raw bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongo FindOne %s/%s: %w", collection, id, Classify(err))
	}
	return fromBSON(raw), true, nil
}

func (m *MongoStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	cur, err := m.db.Collection(collection).Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("mongo Find %s: %w", collection, Classify(err))
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var row struct {
			ID interface{} `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, fmt.Errorf("decode id: %w", err)
		}
		ids = append(ids, idString(row.ID))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo cursor %s: %w", collection, Classify(err))
	}
	return ids, nil
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprint(id)
	}
}

func (m *MongoStore) CommitUpserts(ctx context.Context, ops []Upsert) error {
	if len(ops) == 0 {
		return nil
	}
	grouped := upsertWriteModels(ops, m.now())
	return m.inTransaction(ctx, func(ctx context.Context) error {
		for _, coll := range sortedKeys(grouped) {
			_, err := m.db.Collection(coll).BulkWrite(ctx, grouped[coll], options.BulkWrite().SetOrdered(true))
			if err != nil {
				return fmt.Errorf("mongo BulkWrite %s: %w", coll, Classify(err))
			}
		}
		return nil
	})
}

func (m *MongoStore) CommitDeletes(ctx context.Context, refs []DocRef) error {
	if len(refs) == 0 {
		return nil
	}
	grouped := deleteFilters(refs)
	return m.inTransaction(ctx, func(ctx context.Context) error {
		for _, coll := range sortedKeys(grouped) {
			if _, err := m.db.Collection(coll).DeleteMany(ctx, grouped[coll]); err != nil {
				return fmt.Errorf("mongo DeleteMany %s: %w", coll, Classify(err))
			}
		}
		return nil
	})
}

func (m *MongoStore) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.useTransactions {
		return fn(ctx)
	}

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo StartSession: %w", Classify(err))
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// upsertWriteModels groups ops by collection. Merge ops become $set upserts,
// the rest whole-document replacements.
func upsertWriteModels(ops []Upsert, stamp time.Time) map[string][]mongo.WriteModel {
	grouped := make(map[string][]mongo.WriteModel)
	for _, op := range ops {
		data := resolveTimestamps(op.Data, stamp)
		filter := bson.M{"_id": op.ID}
		var model mongo.WriteModel
		if op.Merge {
			model = mongo.NewUpdateOneModel().
				SetFilter(filter).
				SetUpdate(bson.M{"$set": bson.M(data)}).
				SetUpsert(true)
		} else {
			doc := bson.M{"_id": op.ID}
			for k, v := range data {
				doc[k] = v
			}
			model = mongo.NewReplaceOneModel().
				SetFilter(filter).
				SetReplacement(doc).
				SetUpsert(true)
		}
		grouped[op.Collection] = append(grouped[op.Collection], model)
	}
	return grouped
}

func deleteFilters(refs []DocRef) map[string]bson.M {
	ids := make(map[string][]string)
	for _, ref := range refs {
		ids[ref.Collection] = append(ids[ref.Collection], ref.ID)
	}
	out := make(map[string]bson.M, len(ids))
	for coll, list := range ids {
		out[coll] = bson.M{"_id": bson.M{"$in": list}}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fromBSON converts a decoded document into plain Go values and drops _id.
func fromBSON(raw bson.M) Document {
	doc := make(Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		doc[k] = plainValue(v)
	}
	return doc
}

func plainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case bson.M:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = plainValue(e)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}
