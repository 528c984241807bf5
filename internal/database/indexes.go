package database

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StateIndexes returns the indexes the client state collection needs: a TTL
// index so abandoned sessions and selections disappear after the retention
// window, and an updatedAt index for housekeeping queries.
func StateIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().
				SetName("expiresAt_ttl").
				SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "updatedAt", Value: -1}},
			Options: options.Index().SetName("updatedAt_index"),
		},
	}
}

func EnsureStateIndexes(db *mongo.Database, collection string, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Info("creating state indexes", slog.String("collection", collection))
	names, err := db.Collection(collection).Indexes().CreateMany(ctx, StateIndexes())
	if err != nil {
		log.Error("state index error", slog.String("collection", collection), slog.String("error", err.Error()))
		return err
	}
	log.Info("state indexes created", slog.Any("names", names))
	return nil
}
