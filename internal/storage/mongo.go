package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"voicecapture/internal/config"
	"voicecapture/internal/models"
)

// MongoStore keeps records in a single MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	log    *zap.Logger
}

// NewMongoStore builds a client for cfg.URI. The driver connects lazily, so an
// unreachable server only logs a warning; later calls fail and the fallback
// and replay paths take over until it comes back.
func NewMongoStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (*MongoStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	pingErr := client.Ping(pingCtx, readpref.Primary())
	db := cfg.Database
	if db == "" {
		db = "crm"
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "returned_cust"
	}
	if pingErr != nil {
		log.Warn("mongo not reachable yet, keeping client for retries",
			zap.String("database", db), zap.String("collection", collection), zap.Error(pingErr))
	} else {
		log.Info("connected to mongo", zap.String("database", db), zap.String("collection", collection))
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(db).Collection(collection),
		log:    log,
	}, nil
}

func (s *MongoStore) Collection() string { return s.coll.Name() }

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Insert(ctx context.Context, rec models.Record) (string, error) {
	doc := bson.M{}
	for k, v := range rec {
		if k == models.IDKey {
			continue
		}
		doc[k] = v
	}
	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert feedback: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

func (s *MongoStore) List(ctx context.Context, filter models.ListFilter) ([]models.Record, error) {
	query := mongoFilter(filter)
	cur, err := s.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: models.CreatedAtKey, Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find feedback: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]models.Record, 0)
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode feedback: %w", err)
		}
		out = append(out, fromBSON(doc))
	}
	return out, cur.Err()
}

func (s *MongoStore) Get(ctx context.Context, id string) (models.Record, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	var doc bson.M
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return fromBSON(doc), nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, ErrInvalidID
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("delete feedback: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// mongoFilter translates a list filter. The id filter matches a substring of
// the hex object id; "Empty" matches null or "".
func mongoFilter(filter models.ListFilter) bson.M {
	query := bson.M{}
	if filter.FeedbackID != "" {
		query["$expr"] = bson.M{
			"$regexMatch": bson.M{
				"input":   bson.M{"$toString": "$_id"},
				"regex":   regexp.QuoteMeta(filter.FeedbackID),
				"options": "i",
			},
		}
	}
	for field, v := range filter.Fields {
		if v == models.FilterEmpty {
			query[field] = bson.M{"$in": bson.A{nil, ""}}
			continue
		}
		query[field] = v
	}
	return query
}

func fromBSON(doc bson.M) models.Record {
	rec := make(models.Record, len(doc))
	for k, v := range doc {
		rec[k] = plainValue(v)
	}
	return rec
}

func plainValue(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.M:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = plainValue(inner)
		}
		return out
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = plainValue(inner)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
