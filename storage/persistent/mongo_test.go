package persistent

import (
	"context"
	"errors"
	"os"
	"testing"
	"twipost/storage"
	"twipost/storage/storagetest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Requires a running server, e.g. MONGO_URL=mongodb://localhost:27017.
func TestMongoStorage(t *testing.T) {
	mongoUrl, found := os.LookupEnv("MONGO_URL")
	if !found {
		t.Skip("MONGO_URL not set")
	}
	suite.Run(t, &storagetest.StorageSuite{
		NewStorage: func() storage.Storage {
			ctx := context.Background()
			store, err := CreateMongoStorage(ctx, mongoUrl, "twipost_test_"+uuid.New().String()[:8])
			require.NoError(t, err)
			t.Cleanup(func() {
				s, err := CreateMongoStorage(ctx, mongoUrl, store.posts.Database().Name())
				if err == nil {
					_ = s.Drop(ctx)
					_ = s.Close(ctx)
				}
			})
			return store
		},
	})
}

func TestCompareAndSetText(t *testing.T) {
	mongoUrl, found := os.LookupEnv("MONGO_URL")
	if !found {
		t.Skip("MONGO_URL not set")
	}
	ctx := context.Background()
	store, err := CreateMongoStorage(ctx, mongoUrl, "twipost_test_"+uuid.New().String()[:8])
	require.NoError(t, err)
	defer func() {
		_ = store.Drop(ctx)
		_ = store.Close(ctx)
	}()

	user, err := store.AddUser(ctx, "testuser", "", "hash")
	require.NoError(t, err)
	post, err := store.AddPost(ctx, user.Id, "first")
	require.NoError(t, err)
	postMongoId, err := primitive.ObjectIDFromHex(post.Id)
	require.NoError(t, err)

	stale, err := store.ownedPost(ctx, postMongoId, user.Id)
	require.NoError(t, err)
	_, err = store.PatchPost(ctx, post.Id, user.Id, "second")
	require.NoError(t, err)

	_, err = store.compareAndSetText(ctx, stale, user.Id, "lost update")
	assert.True(t, errors.Is(err, storage.CollisionError), err)

	require.NoError(t, store.DeletePost(ctx, post.Id, user.Id))
	_, err = store.compareAndSetText(ctx, stale, user.Id, "after delete")
	assert.True(t, errors.Is(err, storage.NotFoundError), err)
}
