// Package relational stores users and posts in a SQL database through GORM.
// SQLite and PostgreSQL are supported.
package relational

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"twipost/storage"
	"twipost/storage/models"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type User struct {
	ID           uint64    `gorm:"primaryKey"`
	Username     string    `gorm:"size:150;not null;uniqueIndex"`
	Email        string    `gorm:"size:254"`
	PasswordHash string    `gorm:"size:255;not null"`
	DateJoined   time.Time `gorm:"not null"`
	Posts        []Post    `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) toModel() *models.User {
	return &models.User{
		Id:           formatId(u.ID),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		DateJoined:   u.DateJoined.UTC(),
	}
}

type Post struct {
	ID        uint64    `gorm:"primaryKey"`
	OwnerID   uint64    `gorm:"not null;index"`
	Owner     User      `gorm:"foreignKey:OwnerID"`
	Text      string    `gorm:"size:240;not null"`
	CreatedAt time.Time `gorm:"not null;index;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (Post) TableName() string {
	return "posts"
}

func (p *Post) toModel() *models.Post {
	return &models.Post{
		Id:            formatId(p.ID),
		OwnerId:       formatId(p.OwnerID),
		OwnerUsername: p.Owner.Username,
		Text:          p.Text,
		CreatedAt:     p.CreatedAt.UTC(),
		UpdatedAt:     p.UpdatedAt.UTC(),
	}
}

type RelationalStorage struct {
	db *gorm.DB
}

// Open connects to the database named by dsn. Postgres DSNs start with
// postgres:// or postgresql://; anything else is a SQLite path.
func Open(dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger: logger.New(log.StandardLogger(), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; serialize instead of failing with SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates the users and posts tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&User{}, &Post{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %s %w", err.Error(), storage.InternalError)
	}
	return nil
}

func NewRelationalStorage(db *gorm.DB) *RelationalStorage {
	return &RelationalStorage{db: db}
}

func CreateRelationalStorage(ctx context.Context, dsn string) (storage.Storage, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %s %w", err.Error(), storage.InternalError)
	}
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	return NewRelationalStorage(db), nil
}

func (s *RelationalStorage) AddPost(ctx context.Context, userId string, text string) (*models.Post, error) {
	if err := storage.CheckText(text); err != nil {
		return nil, err
	}
	ownerId, ok := parseId(userId)
	if !ok {
		return nil, fmt.Errorf("owner %s does not exist: %w", userId, storage.NotFoundError)
	}

	var post Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner User
		if err := tx.First(&owner, ownerId).Error; err != nil {
			return classify(err, "owner "+userId)
		}
		now := models.Now()
		post = Post{
			OwnerID:   owner.ID,
			Owner:     owner,
			Text:      text,
			CreatedAt: now,
			UpdatedAt: now,
		}
		// owner already exists, only the post row is written
		if err := tx.Omit("Owner").Create(&post).Error; err != nil {
			return fmt.Errorf("failed to insert post: %s %w", err.Error(), storage.InternalError)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post.toModel(), nil
}

func (s *RelationalStorage) GetPost(ctx context.Context, postId string) (*models.Post, error) {
	id, ok := parseId(postId)
	if !ok {
		return nil, fmt.Errorf("no post with id %v: %w", postId, storage.NotFoundError)
	}
	var post Post
	if err := s.db.WithContext(ctx).Preload("Owner").First(&post, id).Error; err != nil {
		return nil, classify(err, "post "+postId)
	}
	return post.toModel(), nil
}

func (s *RelationalStorage) GetPosts(
	ctx context.Context, userId *string, page *string, size int) ([]*models.Post, *string, error) {

	offset, err := storage.ParsePage(page)
	if err != nil {
		return nil, nil, err
	}

	query := s.db.WithContext(ctx).Preload("Owner").Order("created_at DESC").Order("id DESC")
	if userId != nil {
		ownerId, ok := parseId(*userId)
		if !ok {
			return []*models.Post{}, nil, nil
		}
		query = query.Where("owner_id = ?", ownerId)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if size > 0 {
		query = query.Limit(size + 1)
	}

	var rows []Post
	if err := query.Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to list posts: %s %w", err.Error(), storage.InternalError)
	}
	posts := make([]*models.Post, 0, len(rows))
	for i := range rows {
		posts = append(posts, rows[i].toModel())
	}
	posts, nextPage := storage.Paginate(posts, offset, size)
	return posts, nextPage, nil
}

func (s *RelationalStorage) PatchPost(ctx context.Context, postId string, userId string, text string) (*models.Post, error) {
	if err := storage.CheckText(text); err != nil {
		return nil, err
	}

	id, ok := parseId(postId)
	if !ok {
		return nil, fmt.Errorf("no post with id %v: %w", postId, storage.NotFoundError)
	}

	var post Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		post, err = ownedPost(tx, id, userId)
		if err != nil {
			return err
		}
		post.Text = text
		post.UpdatedAt = models.NextModification(post.UpdatedAt)
		err = tx.Model(&Post{}).Where("id = ?", post.ID).Updates(map[string]interface{}{
			"text":       post.Text,
			"updated_at": post.UpdatedAt,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update post %s: %s %w", postId, err.Error(), storage.InternalError)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post.toModel(), nil
}

func (s *RelationalStorage) DeletePost(ctx context.Context, postId string, userId string) error {
	id, ok := parseId(postId)
	if !ok {
		return fmt.Errorf("no post with id %v: %w", postId, storage.NotFoundError)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := ownedPost(tx, id, userId)
		if err != nil {
			return err
		}
		if err := tx.Delete(&Post{}, post.ID).Error; err != nil {
			return fmt.Errorf("failed to delete post %s: %s %w", postId, err.Error(), storage.InternalError)
		}
		log.Debugf("Deleted post %s of user %s", postId, userId)
		return nil
	})
}

// ownedPost loads a post inside tx and checks that userId owns it.
func ownedPost(tx *gorm.DB, id uint64, userId string) (Post, error) {
	var post Post
	postId := formatId(id)
	if tx.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := tx.Preload("Owner").First(&post, id).Error; err != nil {
		return post, classify(err, "post "+postId)
	}
	if formatId(post.OwnerID) != userId {
		return post, fmt.Errorf("post %s is owned by another user: %d %w", postId, post.OwnerID, storage.Forbidden)
	}
	return post, nil
}

func (s *RelationalStorage) AddUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	user := User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		DateJoined:   models.Now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&User{}).Where("username = ?", username).Count(&taken).Error; err != nil {
			return fmt.Errorf("failed to check username: %s %w", err.Error(), storage.InternalError)
		}
		if taken > 0 {
			return fmt.Errorf("username %q is taken: %w", username, storage.CollisionError)
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("username %q is taken: %w", username, storage.CollisionError)
			}
			return fmt.Errorf("failed to insert user: %s %w", err.Error(), storage.InternalError)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user.toModel(), nil
}

func (s *RelationalStorage) GetUser(ctx context.Context, userId string) (*models.User, error) {
	id, ok := parseId(userId)
	if !ok {
		return nil, fmt.Errorf("no user with id %v: %w", userId, storage.NotFoundError)
	}
	var user User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, classify(err, "user "+userId)
	}
	return user.toModel(), nil
}

func (s *RelationalStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, classify(err, "user "+username)
	}
	return user.toModel(), nil
}

func (s *RelationalStorage) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %s %w", err.Error(), storage.InternalError)
	}
	return count, nil
}

func (s *RelationalStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("%s %w", err.Error(), storage.InternalError)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %s %w", err.Error(), storage.InternalError)
	}
	return nil
}

func (s *RelationalStorage) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func classify(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("no %s: %w", what, storage.NotFoundError)
	}
	return fmt.Errorf("failed to find %s: %s %w", what, err.Error(), storage.InternalError)
}

func parseId(id string) (uint64, bool) {
	v, err := strconv.ParseUint(id, 10, 64)
	return v, err == nil && v > 0
}

func formatId(id uint64) string {
	return strconv.FormatUint(id, 10)
}
