package persistent

import (
	"context"
	"fmt"
	"time"
	"twipost/storage"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the queries rely on. It is safe to call
// on every start.
func (s *MongoStorage) EnsureIndexes(ctx context.Context) error {
	if err := ensurePostsIndexes(ctx, s.posts); err != nil {
		return err
	}
	return ensureUsersIndexes(ctx, s.users)
}

func ensurePostsIndexes(ctx context.Context, posts *mongo.Collection) error {
	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "createdAt", Value: -1},
				{Key: "_id", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "ownerId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
	}
	opts := options.CreateIndexes().SetMaxTime(10 * time.Second)

	_, err := posts.Indexes().CreateMany(ctx, indexModels, opts)
	if err != nil {
		return fmt.Errorf("posts: failed to ensure indexes: %s %w", err.Error(), storage.InternalError)
	}
	return nil
}

func ensureUsersIndexes(ctx context.Context, users *mongo.Collection) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	opts := options.CreateIndexes().SetMaxTime(10 * time.Second)

	_, err := users.Indexes().CreateMany(ctx, indexModels, opts)
	if err != nil {
		return fmt.Errorf("users: failed to ensure indexes: %s %w", err.Error(), storage.InternalError)
	}
	return nil
}
