package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"
	"twipost/storage"
	"twipost/storage/models"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Post struct {
	Id            primitive.ObjectID `bson:"_id,omitempty"`
	OwnerId       string             `bson:"ownerId"`
	OwnerUsername string             `bson:"ownerUsername"`
	Text          string             `bson:"text"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

func (p *Post) GetId() string {
	return p.Id.Hex()
}

func (p *Post) toModel() *models.Post {
	return &models.Post{
		Id:            p.GetId(),
		OwnerId:       p.OwnerId,
		OwnerUsername: p.OwnerUsername,
		Text:          p.Text,
		CreatedAt:     p.CreatedAt.UTC(),
		UpdatedAt:     p.UpdatedAt.UTC(),
	}
}

type User struct {
	Id           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email,omitempty"`
	PasswordHash string             `bson:"passwordHash"`
	DateJoined   time.Time          `bson:"dateJoined"`
}

func (u *User) toModel() *models.User {
	return &models.User{
		Id:           u.Id.Hex(),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		DateJoined:   u.DateJoined.UTC(),
	}
}

type MongoStorage struct {
	client *mongo.Client
	posts  *mongo.Collection
	users  *mongo.Collection
}

func (s *MongoStorage) PatchPost(ctx context.Context, postId string, userId string, text string) (*models.Post, error) {
	if err := storage.CheckText(text); err != nil {
		return nil, err
	}
	postMongoId, err := primitive.ObjectIDFromHex(postId)
	if err != nil {
		return nil, fmt.Errorf("failed to convert provided id to Mongo object id %w", storage.NotFoundError)
	}

	current, err := s.ownedPost(ctx, postMongoId, userId)
	if err != nil {
		return nil, err
	}

	return s.compareAndSetText(ctx, current, userId, text)
}

// compareAndSetText applies text only if the post still has current's
// updatedAt.
func (s *MongoStorage) compareAndSetText(ctx context.Context, current *Post, userId string, text string) (*models.Post, error) {
	filter := bson.M{"_id": current.Id, "ownerId": userId, "updatedAt": current.UpdatedAt}
	update := bson.M{
		"$set": bson.M{
			"text":      text,
			"updatedAt": models.NextModification(current.UpdatedAt),
		},
	}
	upsert := false
	after := options.After
	opt := options.FindOneAndUpdateOptions{
		ReturnDocument: &after,
		Upsert:         &upsert,
	}
	var result Post
	err := s.posts.FindOneAndUpdate(ctx, filter, update, &opt).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// deleted or reassigned since it was read
			if _, err := s.ownedPost(ctx, current.Id, userId); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("post %s was modified concurrently: %w", current.Id.Hex(), storage.CollisionError)
		}
		return nil, fmt.Errorf("failed to update post: %s %s %s %w", err.Error(), current.Id.Hex(), userId, storage.InternalError)
	}
	return result.toModel(), nil
}

func (s *MongoStorage) DeletePost(ctx context.Context, postId string, userId string) error {
	postMongoId, err := primitive.ObjectIDFromHex(postId)
	if err != nil {
		return fmt.Errorf("failed to convert provided id to Mongo object id %w", storage.NotFoundError)
	}
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": postMongoId, "ownerId": userId})
	if err != nil {
		return fmt.Errorf("failed to delete post: %s %w", err.Error(), storage.InternalError)
	}
	if res.DeletedCount == 0 {
		// tell a foreign post apart from a missing one
		_, err := s.ownedPost(ctx, postMongoId, userId)
		if err != nil {
			return err
		}
		return fmt.Errorf("post %s vanished during delete: %w", postId, storage.NotFoundError)
	}
	return nil
}

func (s *MongoStorage) ownedPost(ctx context.Context, postMongoId primitive.ObjectID, userId string) (*Post, error) {
	var result Post
	err := s.posts.FindOne(ctx, bson.M{"_id": postMongoId}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("no document with id %v: %w", postMongoId.Hex(), storage.NotFoundError)
		}
		return nil, fmt.Errorf("failed to find post: %s %w", err.Error(), storage.InternalError)
	}
	if result.OwnerId != userId {
		return nil, fmt.Errorf("post %s is owned by another user: %s %w", postMongoId.Hex(), result.OwnerId, storage.Forbidden)
	}
	return &result, nil
}

func (s *MongoStorage) GetPosts(
	ctx context.Context, userId *string, page *string, size int) ([]*models.Post, *string, error) {

	offset, err := storage.ParsePage(page)
	if err != nil {
		return nil, nil, err
	}

	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	findOptions.SetSkip(int64(offset))
	if size > 0 {
		findOptions.SetLimit(int64(size + 1))
	}

	filter := bson.D{}
	if userId != nil {
		filter = append(filter, bson.E{Key: "ownerId", Value: *userId})
	}
	cursor, err := s.posts.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find posts: %s, %w", err.Error(), storage.InternalError)
	}
	defer func(cursor *mongo.Cursor, ctx context.Context) {
		err := cursor.Close(ctx)
		if err != nil {
			log.Printf("Cursor closing failed: %s", err.Error())
		}
	}(cursor, ctx)

	posts := make([]*models.Post, 0)
	for cursor.Next(ctx) {
		var nextPost Post
		if err = cursor.Decode(&nextPost); err != nil {
			return nil, nil, fmt.Errorf("decode error: %s, %w", err, storage.InternalError)
		}
		posts = append(posts, nextPost.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, nil, fmt.Errorf("cursor error: %s, %w", err, storage.InternalError)
	}
	posts, nextPage := storage.Paginate(posts, offset, size)
	return posts, nextPage, nil
}

func (s *MongoStorage) AddPost(ctx context.Context, userId string, text string) (*models.Post, error) {
	if err := storage.CheckText(text); err != nil {
		return nil, err
	}
	owner, err := s.GetUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	now := models.Now()
	post := Post{
		Text:          text,
		OwnerId:       owner.Id,
		OwnerUsername: owner.Username,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	id, err := s.posts.InsertOne(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %s %w", err.Error(), storage.InternalError)
	}
	post.Id = id.InsertedID.(primitive.ObjectID)
	return post.toModel(), nil
}

func (s *MongoStorage) GetPost(ctx context.Context, postId string) (*models.Post, error) {
	var result Post
	postMongoId, err := primitive.ObjectIDFromHex(postId)
	if err != nil {
		return nil, fmt.Errorf("failed to convert provided id to Mongo object id %w", storage.NotFoundError)
	}
	err = s.posts.FindOne(ctx, bson.M{"_id": postMongoId}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("no document with id %v: %w", postId, storage.NotFoundError)
		}
		return nil, fmt.Errorf("failed to find post: %s %w", err.Error(), storage.InternalError)
	}
	return result.toModel(), nil
}

func (s *MongoStorage) AddUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	user := User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		DateJoined:   models.Now(),
	}
	id, err := s.users.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("username %q is taken: %w", username, storage.CollisionError)
		}
		return nil, fmt.Errorf("failed to insert user: %s %w", err.Error(), storage.InternalError)
	}
	user.Id = id.InsertedID.(primitive.ObjectID)
	return user.toModel(), nil
}

func (s *MongoStorage) GetUser(ctx context.Context, userId string) (*models.User, error) {
	userMongoId, err := primitive.ObjectIDFromHex(userId)
	if err != nil {
		return nil, fmt.Errorf("failed to convert provided id to Mongo object id %w", storage.NotFoundError)
	}
	return s.findUser(ctx, bson.M{"_id": userMongoId})
}

func (s *MongoStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"username": username})
}

func (s *MongoStorage) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var result User
	err := s.users.FindOne(ctx, filter).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("no user matching %v: %w", filter, storage.NotFoundError)
		}
		return nil, fmt.Errorf("failed to find user: %s %w", err.Error(), storage.InternalError)
	}
	return result.toModel(), nil
}

func (s *MongoStorage) CountUsers(ctx context.Context) (int64, error) {
	count, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %s %w", err.Error(), storage.InternalError)
	}
	return count, nil
}

func (s *MongoStorage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo unreachable: %s %w", err.Error(), storage.InternalError)
	}
	return nil
}

func (s *MongoStorage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Drop removes both collections. Used to reset test databases.
func (s *MongoStorage) Drop(ctx context.Context) error {
	if err := s.posts.Drop(ctx); err != nil {
		return err
	}
	return s.users.Drop(ctx)
}

func CreateMongoStorage(ctx context.Context, dbUrl, dbName string) (*MongoStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dbUrl))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %s %w", err.Error(), storage.InternalError)
	}
	db := client.Database(dbName)
	s := &MongoStorage{
		client: client,
		posts:  db.Collection("posts"),
		users:  db.Collection("users"),
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}
