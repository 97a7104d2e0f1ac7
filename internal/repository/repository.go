package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/models"
)

type CreateUserParams struct {
	Email        string
	Username     string
	Name         string
	PasswordHash string
	Credentials  models.Credentials
}

// Optional profile fields, nil means "leave as is"
type UpdateProfileParams struct {
	Name     *string
	Username *string
}

// User repository interface
type UserRepo interface {
	// Create user
	// Has to return apperrors.ErrEmailTaken or apperrors.ErrUsernameTaken
	// when the unique constraint is violated
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by id, email or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// Get user only if its current credentials version matches the given one
	// Must return apperrors.ErrUserNotFound otherwise, so stale tokens can
	// not resolve a user
	GetUserByCredentials(ctx context.Context, userID uuid.UUID, version int) (models.User, error)

	// Count users whose username starts with the given slug
	// Used to generate unique usernames at sign-up
	CountUsernamesLike(ctx context.Context, slug string) (int, error)

	// Update profile fields (name, username)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params UpdateProfileParams) (models.User, error)

	// Replace email together with the bumped credentials
	UpdateEmail(ctx context.Context, userID uuid.UUID, email string, credentials models.Credentials) (models.User, error)

	// Replace password hash together with the bumped credentials
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string, credentials models.Credentials) (models.User, error)

	// Mark the user confirmed
	// Matches on (id, credentials version) like GetUserByCredentials
	ConfirmEmail(ctx context.Context, userID uuid.UUID, version int) (models.User, error)

	// Delete user by id
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}
