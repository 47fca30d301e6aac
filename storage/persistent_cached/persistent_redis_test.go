package persistent_cached

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"twipost/storage"
	"twipost/storage/in_memory"
	"twipost/storage/models"
	"twipost/storage/storagetest"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Requires a running server, e.g. REDIS_URL=redis://localhost:6379/15.
// The database is flushed between tests.
func redisClient(t *testing.T) *redis.Client {
	redisUrl, found := os.LookupEnv("REDIS_URL")
	if !found {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(redisUrl)
	require.NoError(t, err)
	return redis.NewClient(opts)
}

func TestCachedStorage(t *testing.T) {
	redisClient(t).Close()
	suite.Run(t, &storagetest.StorageSuite{
		NewStorage: func() storage.Storage {
			client := redisClient(t)
			require.NoError(t, client.FlushDB(context.Background()).Err())
			return NewPersistentStorageWithCache(in_memory.CreateInMemoryStorage(), client, DefaultTTL)
		},
	})
}

func TestCacheIsInvalidated(t *testing.T) {
	ctx := context.Background()
	client := redisClient(t)
	require.NoError(t, client.FlushDB(ctx).Err())
	s := NewPersistentStorageWithCache(in_memory.CreateInMemoryStorage(), client, DefaultTTL)
	defer s.Close(ctx)

	u, err := s.AddUser(ctx, "testuser", "", "hash")
	require.NoError(t, err)
	post, err := s.AddPost(ctx, u.Id, "cached")
	require.NoError(t, err)

	raw, err := client.Get(ctx, cacheKey(post.Id)).Bytes()
	require.NoError(t, err)
	var cached models.Post
	require.NoError(t, json.Unmarshal(raw, &cached))
	require.Equal(t, "cached", cached.Text)

	_, err = s.PatchPost(ctx, post.Id, u.Id, "fresh")
	require.NoError(t, err)
	require.ErrorIs(t, client.Get(ctx, cacheKey(post.Id)).Err(), redis.Nil)

	got, err := s.GetPost(ctx, post.Id)
	require.NoError(t, err)
	require.Equal(t, "fresh", got.Text)
	require.NoError(t, client.Get(ctx, cacheKey(post.Id)).Err())

	require.NoError(t, s.DeletePost(ctx, post.Id, u.Id))
	require.ErrorIs(t, client.Get(ctx, cacheKey(post.Id)).Err(), redis.Nil)
	_, err = s.GetPost(ctx, post.Id)
	require.ErrorIs(t, err, storage.NotFoundError)
}

func TestCacheFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	backing := in_memory.CreateInMemoryStorage()
	s := CreatePersistentStorageCachedWithRedis(backing, "127.0.0.1:1")
	defer s.Close(ctx)

	u, err := s.AddUser(ctx, "testuser", "", "hash")
	require.NoError(t, err)
	post, err := s.AddPost(ctx, u.Id, "no cache")
	require.NoError(t, err)

	got, err := s.GetPost(ctx, post.Id)
	require.NoError(t, err)
	require.Equal(t, "no cache", got.Text)
	require.NoError(t, s.Ping(ctx))
}
