package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"twipost/storage/models"
)

var (
	InternalError   = errors.New("storage internal error")
	ClientError     = errors.New("storage client error")
	CollisionError  = fmt.Errorf("%w.collision", ClientError)
	NotFoundError   = fmt.Errorf("%w.not_found", ClientError)
	ValidationError = fmt.Errorf("%w.validation", ClientError)
	Forbidden       = errors.New("storage forbidden")
)

type PostStorage interface {
	AddPost(ctx context.Context, userId string, text string) (*models.Post, error)
	GetPost(ctx context.Context, postId string) (*models.Post, error)
	// GetPosts lists posts newest first. A nil userId lists every owner.
	// size <= 0 returns all matching posts without a next page.
	GetPosts(ctx context.Context, userId *string, page *string, size int) ([]*models.Post, *string, error)
	PatchPost(ctx context.Context, postId string, userId string, text string) (*models.Post, error)
	DeletePost(ctx context.Context, postId string, userId string) error
}

type UserStorage interface {
	AddUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	GetUser(ctx context.Context, userId string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

type Storage interface {
	PostStorage
	UserStorage
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// CheckText validates post text and classifies failures as ValidationError.
func CheckText(text string) error {
	if err := models.ValidateText(text); err != nil {
		return fmt.Errorf("%w: %w", ValidationError, err)
	}
	return nil
}

// ParsePage decodes a page token into an offset. Tokens are opaque to callers.
func ParsePage(page *string) (int, error) {
	if page == nil {
		return 0, nil
	}
	offset, err := strconv.Atoi(*page)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid page %q: %w", *page, ClientError)
	}
	return offset, nil
}

// Paginate trims a result fetched with size+1 items and computes the next
// page token.
func Paginate(posts []*models.Post, offset, size int) ([]*models.Post, *string) {
	if size <= 0 || len(posts) <= size {
		return posts, nil
	}
	next := strconv.Itoa(offset + size)
	return posts[:size], &next
}
