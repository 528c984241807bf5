package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StateCollection is the collection MongoKV keeps client state in.
const StateCollection = "client_state"

type stateDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// MongoKV persists values as documents; a TTL index on expiresAt removes
// entries untouched for longer than the retention window.
type MongoKV struct {
	coll      *mongo.Collection
	retention time.Duration
	timeout   time.Duration
	log       *slog.Logger
	now       func() time.Time
}

func NewMongoKV(db *mongo.Database, retention time.Duration, log *slog.Logger) *MongoKV {
	return &MongoKV{
		coll:      db.Collection(StateCollection),
		retention: retention,
		timeout:   5 * time.Second,
		log:       log,
		now:       time.Now,
	}
}

func (s *MongoKV) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var doc stateDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false
	}
	if err != nil {
		s.log.Warn("state read failed", slog.String("key", key), slog.String("error", err.Error()))
		return "", false
	}
	// the TTL monitor runs about once a minute
	if !doc.ExpiresAt.IsZero() && !doc.ExpiresAt.After(s.now()) {
		return "", false
	}
	return doc.Value, true
}

func (s *MongoKV) Set(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	doc := s.document(key, value)
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{
			"value":     doc.Value,
			"updatedAt": doc.UpdatedAt,
			"expiresAt": doc.ExpiresAt,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		s.log.Warn("state write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *MongoKV) Remove(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		s.log.Warn("state delete failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *MongoKV) document(key, value string) stateDocument {
	now := s.now()
	return stateDocument{
		Key:       key,
		Value:     value,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.retention),
	}
}
