package in_memory

import (
	"context"
	"fmt"
	"sync"
	"twipost/storage"
	"twipost/storage/models"

	"github.com/google/uuid"
)

type InMemoryStorage struct {
	mut           sync.RWMutex
	posts         map[string]models.Post
	postIds       []string
	postIdsByUser map[string][]string
	users         map[string]models.User
	userIdsByName map[string]string
}

func (s *InMemoryStorage) GetPosts(
	ctx context.Context, userId *string, page *string, size int) ([]*models.Post, *string, error) {

	offset, err := storage.ParsePage(page)
	if err != nil {
		return nil, nil, err
	}

	s.mut.RLock()
	defer s.mut.RUnlock()

	postIds := s.postIds
	if userId != nil {
		postIds = s.postIdsByUser[*userId]
	}
	posts := make([]*models.Post, 0)
	// ids are kept in creation order, so walking backwards is newest first
	for i := len(postIds) - 1 - offset; i >= 0; i-- {
		if size > 0 && len(posts) == size+1 {
			break
		}
		post := s.posts[postIds[i]]
		posts = append(posts, &post)
	}
	posts, nextPage := storage.Paginate(posts, offset, size)
	return posts, nextPage, nil
}

func (s *InMemoryStorage) AddPost(ctx context.Context, userId string, text string) (*models.Post, error) {
	if err := storage.CheckText(text); err != nil {
		return nil, err
	}

	s.mut.Lock()
	defer s.mut.Unlock()

	owner, found := s.users[userId]
	if !found {
		return nil, fmt.Errorf("owner %s does not exist: %w", userId, storage.NotFoundError)
	}
	now := models.Now()
	p := models.Post{
		Id:            uuid.New().String(),
		OwnerId:       owner.Id,
		OwnerUsername: owner.Username,
		Text:          text,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.posts[p.Id] = p
	s.postIds = append(s.postIds, p.Id)
	s.postIdsByUser[p.OwnerId] = append(s.postIdsByUser[p.OwnerId], p.Id)
	return &p, nil
}

func (s *InMemoryStorage) GetPost(ctx context.Context, postId string) (*models.Post, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	post, found := s.posts[postId]
	if !found {
		return nil, fmt.Errorf("no post with id %v: %w", postId, storage.NotFoundError)
	}
	return &post, nil
}

func (s *InMemoryStorage) PatchPost(ctx context.Context, postId string, userId string, text string) (*models.Post, error) {
	if err := storage.CheckText(text); err != nil {
		return nil, err
	}

	s.mut.Lock()
	defer s.mut.Unlock()

	post, err := s.ownedPost(postId, userId)
	if err != nil {
		return nil, err
	}
	post.Text = text
	post.UpdatedAt = models.NextModification(post.UpdatedAt)
	s.posts[postId] = post
	return &post, nil
}

func (s *InMemoryStorage) DeletePost(ctx context.Context, postId string, userId string) error {
	s.mut.Lock()
	defer s.mut.Unlock()

	post, err := s.ownedPost(postId, userId)
	if err != nil {
		return err
	}
	delete(s.posts, postId)
	s.postIds = without(s.postIds, postId)
	s.postIdsByUser[post.OwnerId] = without(s.postIdsByUser[post.OwnerId], postId)
	return nil
}

// ownedPost must be called with the write lock held.
func (s *InMemoryStorage) ownedPost(postId string, userId string) (models.Post, error) {
	post, found := s.posts[postId]
	if !found {
		return post, fmt.Errorf("no post with id %v: %w", postId, storage.NotFoundError)
	}
	if post.OwnerId != userId {
		return post, fmt.Errorf("post %s is owned by another user: %s %w", postId, post.OwnerId, storage.Forbidden)
	}
	return post, nil
}

func (s *InMemoryStorage) AddUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	if _, found := s.userIdsByName[username]; found {
		return nil, fmt.Errorf("username %q is taken: %w", username, storage.CollisionError)
	}
	u := models.User{
		Id:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		DateJoined:   models.Now(),
	}
	s.users[u.Id] = u
	s.userIdsByName[username] = u.Id
	return &u, nil
}

func (s *InMemoryStorage) GetUser(ctx context.Context, userId string) (*models.User, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	u, found := s.users[userId]
	if !found {
		return nil, fmt.Errorf("no user with id %v: %w", userId, storage.NotFoundError)
	}
	return &u, nil
}

func (s *InMemoryStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	userId, found := s.userIdsByName[username]
	if !found {
		return nil, fmt.Errorf("no user named %q: %w", username, storage.NotFoundError)
	}
	u := s.users[userId]
	return &u, nil
}

func (s *InMemoryStorage) CountUsers(ctx context.Context) (int64, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	return int64(len(s.users)), nil
}

func (s *InMemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (s *InMemoryStorage) Close(ctx context.Context) error {
	return nil
}

func without(ids []string, id string) []string {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}

func CreateInMemoryStorage() storage.Storage {
	return &InMemoryStorage{
		posts:         make(map[string]models.Post),
		postIdsByUser: make(map[string][]string),
		users:         make(map[string]models.User),
		userIdsByName: make(map[string]string),
	}
}
