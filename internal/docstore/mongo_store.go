package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on a single MongoDB collection. Every document
// is stored as {_id: path, parent: collection path, fields: {...}}. GeoPoint
// and Ref values are stored as one-key subdocuments named like their value.go
// envelopes. Field names may not contain '.' or start with '$'.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoDoc struct {
	ID     string `bson:"_id"`
	Parent string `bson:"parent"`
	Fields bson.M `bson:"fields"`
}

func NewMongoStore(ctx context.Context, uri string, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	coll := client.Database(database).Collection("documents")
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parent", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo index: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	coll, err := Collection(collection)
	if err != nil {
		return "", err
	}
	for name := range fields {
		if err := mongoFieldName(name); err != nil {
			return "", err
		}
	}
	id := NewID()
	doc := mongoDoc{ID: Join(coll, id), Parent: coll, Fields: toBSON(fields).(bson.M)}
	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("mongo insert: %w", err)
	}
	return id, nil
}

func (m *MongoStore) load(ctx context.Context, doc string) (mongoDoc, error) {
	var out mongoDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": doc}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return mongoDoc{}, ErrNotFound
	}
	return out, err
}

func (m *MongoStore) Get(ctx context.Context, doc string) (map[string]any, error) {
	d, err := m.load(ctx, doc)
	if err != nil {
		return nil, err
	}
	out, _ := fromBSON(d.Fields).(map[string]any)
	return out, nil
}

func (m *MongoStore) GetField(ctx context.Context, doc string, name string) (any, bool, error) {
	d, err := m.load(ctx, doc)
	if err != nil {
		return nil, false, err
	}
	v, ok := d.Fields[name]
	if !ok {
		return nil, false, nil
	}
	return fromBSON(v), true, nil
}

func (m *MongoStore) UpdateField(ctx context.Context, doc string, name string, value any) error {
	if err := mongoFieldName(name); err != nil {
		return err
	}
	res, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": doc},
		bson.M{"$set": bson.M{"fields." + name: toBSON(value)}},
	)
	if err != nil {
		return fmt.Errorf("mongo update: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) ListChildDocuments(ctx context.Context, collection string) ([]string, error) {
	coll, err := Collection(collection)
	if err != nil {
		return nil, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	cur, err := m.coll.Find(ctx, bson.M{"parent": coll}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)
	var out []string
	for cur.Next(ctx) {
		var d struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d.ID)
	}
	return out, cur.Err()
}

func toBSON(v any) any {
	switch x := v.(type) {
	case time.Time:
		return primitive.NewDateTimeFromTime(x)
	case GeoPoint:
		return bson.M{"geoPointValue": bson.M{"latitude": x.Lat, "longitude": x.Lng}}
	case Ref:
		return bson.M{"referenceValue": x.Path}
	case map[string]any:
		out := make(bson.M, len(x))
		for k, e := range x {
			out[k] = toBSON(e)
		}
		return out
	case []any:
		out := make(bson.A, len(x))
		for i, e := range x {
			out[i] = toBSON(e)
		}
		return out
	default:
		return v
	}
}

func fromBSON(v any) any {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time().UTC()
	case int32:
		return int64(x)
	case bson.M:
		if len(x) == 1 {
			if ref, ok := x["referenceValue"].(string); ok {
				return Ref{Path: ref}
			}
			if g, ok := geoPointFromBSON(x["geoPointValue"]); ok {
				return g
			}
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = fromBSON(e)
		}
		return out
	case bson.D:
		return fromBSON(x.Map())
	case bson.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromBSON(e)
		}
		return out
	default:
		return v
	}
}

func geoPointFromBSON(v any) (GeoPoint, bool) {
	var m bson.M
	switch x := v.(type) {
	case bson.M:
		m = x
	case bson.D:
		m = x.Map()
	default:
		return GeoPoint{}, false
	}
	lat, okLat := m["latitude"].(float64)
	lng, okLng := m["longitude"].(float64)
	if !okLat || !okLng || len(m) != 2 {
		return GeoPoint{}, false
	}
	return GeoPoint{Lat: lat, Lng: lng}, true
}

func mongoFieldName(name string) error {
	if name == "" || strings.Contains(name, ".") || strings.HasPrefix(name, "$") {
		return fmt.Errorf("field name %q is not supported by the mongo backend", name)
	}
	return nil
}
