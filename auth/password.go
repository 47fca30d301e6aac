package auth

import (
	"context"
	"errors"
	"fmt"
	"twipost/storage"
	"twipost/storage/models"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticate returns the user whose credentials match. Unknown users and
// wrong passwords are both reported as ErrInvalidCredentials.
func Authenticate(ctx context.Context, users storage.UserStorage, username, password string) (*models.User, error) {
	user, err := users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.NotFoundError) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// CreateUser hashes password and stores a new user.
func CreateUser(ctx context.Context, users storage.UserStorage, username, email, password string) (*models.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return users.AddUser(ctx, username, email, hash)
}
