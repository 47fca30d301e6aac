package persistent_cached

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"twipost/storage"
	"twipost/storage/models"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const DefaultTTL = time.Hour

func cacheKey(postId string) string {
	return "post:" + postId
}

func (s *PersistentStorageWithCache) saveToCache(ctx context.Context, post *models.Post) {
	j, err := json.Marshal(post)
	if err == nil {
		err = s.client.Set(ctx, cacheKey(post.Id), j, s.ttl).Err()
	}
	if err != nil {
		log.Warnf("Failed to save post to redis: %s", err)
	}
}

func (s *PersistentStorageWithCache) getFromCache(ctx context.Context, postId string) (*models.Post, error) {
	val, err := s.client.Get(ctx, cacheKey(postId)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("Failed to get post from redis: %s", err)
		}
		return nil, err
	}
	var p models.Post
	if err = json.Unmarshal(val, &p); err != nil {
		log.Warnf("Dropping undecodable cache entry for post %s: %s", postId, err)
		s.removeFromCache(ctx, postId)
		return nil, err
	}
	return &p, nil
}

func (s *PersistentStorageWithCache) removeFromCache(ctx context.Context, postId string) {
	err := s.client.Del(ctx, cacheKey(postId)).Err()
	if err != nil {
		log.Warnf("Failed to remove post from redis: %s", err.Error())
	}
}

// CreatePersistentStorageCachedWithRedis puts a read-through cache for single
// posts in front of persistentStorage. Cache failures never fail a request.
// redisUrl is either a redis:// URL or a bare host:port.
func CreatePersistentStorageCachedWithRedis(persistentStorage storage.Storage, redisUrl string) *PersistentStorageWithCache {
	opts, err := redis.ParseURL(redisUrl)
	if err != nil {
		opts = &redis.Options{Addr: redisUrl}
	}
	return NewPersistentStorageWithCache(persistentStorage, redis.NewClient(opts), DefaultTTL)
}

func NewPersistentStorageWithCache(persistentStorage storage.Storage, client *redis.Client, ttl time.Duration) *PersistentStorageWithCache {
	return &PersistentStorageWithCache{
		Storage: persistentStorage,
		client:  client,
		ttl:     ttl,
	}
}

// PersistentStorageWithCache overrides the single-post operations of the
// embedded Storage; everything else goes straight to it.
type PersistentStorageWithCache struct {
	storage.Storage
	client *redis.Client
	ttl    time.Duration
}

func (s *PersistentStorageWithCache) PatchPost(ctx context.Context, id string, userId string, text string) (*models.Post, error) {
	post, err := s.Storage.PatchPost(ctx, id, userId, text)
	if err == nil {
		s.removeFromCache(ctx, post.Id)
	}
	return post, err
}

func (s *PersistentStorageWithCache) DeletePost(ctx context.Context, id string, userId string) error {
	err := s.Storage.DeletePost(ctx, id, userId)
	if err == nil {
		s.removeFromCache(ctx, id)
	}
	return err
}

func (s *PersistentStorageWithCache) AddPost(ctx context.Context, userId string, text string) (*models.Post, error) {
	post, err := s.Storage.AddPost(ctx, userId, text)
	if err == nil {
		s.saveToCache(ctx, post)
	}
	return post, err
}

func (s *PersistentStorageWithCache) GetPost(ctx context.Context, postId string) (*models.Post, error) {
	p, err := s.getFromCache(ctx, postId)
	if err == nil {
		return p, nil
	}
	post, err := s.Storage.GetPost(ctx, postId)
	if err == nil {
		s.saveToCache(ctx, post)
	}
	return post, err
}

func (s *PersistentStorageWithCache) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		// degraded, not down: reads fall through to the backing store
		log.Warnf("Redis unreachable: %s", err)
	}
	return s.Storage.Ping(ctx)
}

func (s *PersistentStorageWithCache) Close(ctx context.Context) error {
	cacheErr := s.client.Close()
	if err := s.Storage.Close(ctx); err != nil {
		return err
	}
	if cacheErr != nil {
		return fmt.Errorf("failed to close redis client: %w", cacheErr)
	}
	return nil
}
