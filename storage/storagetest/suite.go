// Package storagetest holds the behaviour every storage.Storage backend must
// share. Backend packages run it from their own tests.
package storagetest

import (
	"context"
	"strings"
	"sync"
	"twipost/storage"
	"twipost/storage/models"

	"github.com/stretchr/testify/suite"
)

type StorageSuite struct {
	suite.Suite

	// NewStorage returns an empty store. It is called before every test.
	NewStorage func() storage.Storage

	ctx     context.Context
	storage storage.Storage
	owner   *models.User
	other   *models.User
}

func (s *StorageSuite) SetupTest() {
	s.ctx = context.Background()
	s.storage = s.NewStorage()

	var err error
	s.owner, err = s.storage.AddUser(s.ctx, "testuser", "test@example.com", "hash")
	s.Require().NoError(err)
	s.other, err = s.storage.AddUser(s.ctx, "otheruser", "", "hash")
	s.Require().NoError(err)
}

func (s *StorageSuite) TearDownTest() {
	s.Require().NoError(s.storage.Close(s.ctx))
}

func (s *StorageSuite) TestAddPost() {
	post, err := s.storage.AddPost(s.ctx, s.owner.Id, "This is a test tweet")
	s.Require().NoError(err)

	s.NotEmpty(post.Id)
	s.Equal("This is a test tweet", post.Text)
	s.Equal(s.owner.Id, post.OwnerId)
	s.Equal("testuser", post.OwnerUsername)
	s.False(post.CreatedAt.IsZero())
	s.True(post.CreatedAt.Equal(post.UpdatedAt))

	stored, err := s.storage.GetPost(s.ctx, post.Id)
	s.Require().NoError(err)
	s.Equal(post.Text, stored.Text)
	s.Equal("testuser", stored.OwnerUsername)
	s.True(post.CreatedAt.Equal(stored.CreatedAt))
	s.True(stored.CreatedAt.Equal(stored.UpdatedAt))
}

func (s *StorageSuite) TestAddPostValidation() {
	_, err := s.storage.AddPost(s.ctx, s.owner.Id, strings.Repeat("a", 250))
	s.ErrorIs(err, storage.ValidationError)

	_, err = s.storage.AddPost(s.ctx, s.owner.Id, "   ")
	s.ErrorIs(err, storage.ValidationError)

	posts, _, err := s.storage.GetPosts(s.ctx, nil, nil, 0)
	s.Require().NoError(err)
	s.Empty(posts)
}

func (s *StorageSuite) TestAddPostUnknownOwner() {
	_, err := s.storage.AddPost(s.ctx, s.unknownId(), "orphan")
	s.ErrorIs(err, storage.NotFoundError)
}

func (s *StorageSuite) TestGetPostNotFound() {
	_, err := s.storage.GetPost(s.ctx, s.unknownId())
	s.ErrorIs(err, storage.NotFoundError)

	_, err = s.storage.GetPost(s.ctx, "not-an-id")
	s.ErrorIs(err, storage.NotFoundError)
}

func (s *StorageSuite) TestGetPostsNewestFirst() {
	var texts []string
	for _, text := range []string{"first", "second", "third"} {
		_, err := s.storage.AddPost(s.ctx, s.owner.Id, text)
		s.Require().NoError(err)
		texts = append([]string{text}, texts...)
	}
	_, err := s.storage.AddPost(s.ctx, s.other.Id, "other")
	s.Require().NoError(err)

	posts, next, err := s.storage.GetPosts(s.ctx, nil, nil, 0)
	s.Require().NoError(err)
	s.Nil(next)
	s.Require().Len(posts, 4)
	s.Equal("other", posts[0].Text)

	posts, _, err = s.storage.GetPosts(s.ctx, &s.owner.Id, nil, 0)
	s.Require().NoError(err)
	s.Equal(texts, postTexts(posts))
	for i := 1; i < len(posts); i++ {
		s.False(posts[i].CreatedAt.After(posts[i-1].CreatedAt))
	}
}

func (s *StorageSuite) TestGetPostsPages() {
	for i := 0; i < 5; i++ {
		_, err := s.storage.AddPost(s.ctx, s.owner.Id, strings.Repeat("x", i+1))
		s.Require().NoError(err)
	}

	var seen []string
	var page *string
	for pages := 0; ; pages++ {
		s.Require().Less(pages, 5)
		posts, next, err := s.storage.GetPosts(s.ctx, &s.owner.Id, page, 2)
		s.Require().NoError(err)
		s.LessOrEqual(len(posts), 2)
		seen = append(seen, postTexts(posts)...)
		if next == nil {
			break
		}
		page = next
	}
	s.Equal([]string{"xxxxx", "xxxx", "xxx", "xx", "x"}, seen)

	bad := "garbage"
	_, _, err := s.storage.GetPosts(s.ctx, nil, &bad, 2)
	s.ErrorIs(err, storage.ClientError)
}

func (s *StorageSuite) TestPatchPost() {
	post, err := s.storage.AddPost(s.ctx, s.owner.Id, "before")
	s.Require().NoError(err)

	patched, err := s.storage.PatchPost(s.ctx, post.Id, s.owner.Id, "after")
	s.Require().NoError(err)
	s.Equal("after", patched.Text)
	s.True(patched.CreatedAt.Equal(post.CreatedAt))
	s.True(patched.UpdatedAt.After(post.UpdatedAt))

	again, err := s.storage.PatchPost(s.ctx, post.Id, s.owner.Id, "again")
	s.Require().NoError(err)
	s.True(again.UpdatedAt.After(patched.UpdatedAt))

	stored, err := s.storage.GetPost(s.ctx, post.Id)
	s.Require().NoError(err)
	s.Equal("again", stored.Text)
	s.True(stored.CreatedAt.Equal(post.CreatedAt))
	s.True(stored.UpdatedAt.Equal(again.UpdatedAt))
}

func (s *StorageSuite) TestPatchPostRejected() {
	post, err := s.storage.AddPost(s.ctx, s.owner.Id, "mine")
	s.Require().NoError(err)

	_, err = s.storage.PatchPost(s.ctx, post.Id, s.other.Id, "hijacked")
	s.ErrorIs(err, storage.Forbidden)

	_, err = s.storage.PatchPost(s.ctx, post.Id, s.owner.Id, strings.Repeat("a", 241))
	s.ErrorIs(err, storage.ValidationError)

	_, err = s.storage.PatchPost(s.ctx, s.unknownId(), s.owner.Id, "nothing")
	s.ErrorIs(err, storage.NotFoundError)

	stored, err := s.storage.GetPost(s.ctx, post.Id)
	s.Require().NoError(err)
	s.Equal("mine", stored.Text)
	s.True(stored.UpdatedAt.Equal(post.UpdatedAt))
}

func (s *StorageSuite) TestDeletePost() {
	post, err := s.storage.AddPost(s.ctx, s.owner.Id, "short-lived")
	s.Require().NoError(err)

	s.ErrorIs(s.storage.DeletePost(s.ctx, post.Id, s.other.Id), storage.Forbidden)
	_, err = s.storage.GetPost(s.ctx, post.Id)
	s.Require().NoError(err)

	s.Require().NoError(s.storage.DeletePost(s.ctx, post.Id, s.owner.Id))
	_, err = s.storage.GetPost(s.ctx, post.Id)
	s.ErrorIs(err, storage.NotFoundError)
	s.ErrorIs(s.storage.DeletePost(s.ctx, post.Id, s.owner.Id), storage.NotFoundError)

	posts, _, err := s.storage.GetPosts(s.ctx, &s.owner.Id, nil, 0)
	s.Require().NoError(err)
	s.Empty(posts)
}

func (s *StorageSuite) TestUsers() {
	count, err := s.storage.CountUsers(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	_, err = s.storage.AddUser(s.ctx, "testuser", "dup@example.com", "hash")
	s.ErrorIs(err, storage.CollisionError)

	byName, err := s.storage.GetUserByUsername(s.ctx, "testuser")
	s.Require().NoError(err)
	s.Equal(s.owner.Id, byName.Id)
	s.Equal("test@example.com", byName.Email)
	s.Equal("hash", byName.PasswordHash)

	byId, err := s.storage.GetUser(s.ctx, s.owner.Id)
	s.Require().NoError(err)
	s.Equal("testuser", byId.Username)

	_, err = s.storage.GetUserByUsername(s.ctx, "nobody")
	s.ErrorIs(err, storage.NotFoundError)
	_, err = s.storage.GetUser(s.ctx, s.unknownId())
	s.ErrorIs(err, storage.NotFoundError)

	s.NoError(s.storage.Ping(s.ctx))
}

func (s *StorageSuite) TestConcurrentPatches() {
	post, err := s.storage.AddPost(s.ctx, s.owner.Id, "start")
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// concurrent writers may lose a compare-and-set; that is a collision, not corruption
			_, err := s.storage.PatchPost(s.ctx, post.Id, s.owner.Id, "concurrent")
			if err != nil {
				s.ErrorIs(err, storage.CollisionError)
			}
		}()
	}
	wg.Wait()

	stored, err := s.storage.GetPost(s.ctx, post.Id)
	s.Require().NoError(err)
	s.Equal("concurrent", stored.Text)
	s.True(stored.UpdatedAt.After(stored.CreatedAt))
}

// unknownId looks like an id in every backend but never names a record.
func (s *StorageSuite) unknownId() string {
	return "0123456789abcdef01234567"
}

func postTexts(posts []*models.Post) []string {
	texts := make([]string, 0, len(posts))
	for _, p := range posts {
		texts = append(texts, p.Text)
	}
	return texts
}
