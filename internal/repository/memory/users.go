// Package memory holds an in-memory UserRepo used in tests and local runs
// without a database. It honors the same error contract as the postgres
// implementation.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
)

type UserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		users: make(map[uuid.UUID]models.User),
	}
}

func (r *UserRepo) CreateUser(_ context.Context, params repository.CreateUserParams) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == params.Email {
			return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrEmailTaken)
		}
		if u.Username == params.Username {
			return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrUsernameTaken)
		}
	}

	user := models.User{
		ID:           uuid.New(),
		CreatedAt:    time.Now(),
		Email:        params.Email,
		Username:     params.Username,
		Name:         params.Name,
		PasswordHash: params.PasswordHash,
		Confirmed:    false,
		Credentials:  params.Credentials,
	}
	r.users[user.ID] = user

	return user, nil
}

func (r *UserRepo) GetUserByID(_ context.Context, userID uuid.UUID) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return user, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	}
	return user, nil
}

func (r *UserRepo) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.findLocked(func(u models.User) bool { return u.Email == email })
}

func (r *UserRepo) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.findLocked(func(u models.User) bool { return u.Username == username })
}

func (r *UserRepo) GetUserByCredentials(_ context.Context, userID uuid.UUID, version int) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok || user.Credentials.Version != version {
		return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	}
	return user, nil
}

func (r *UserRepo) CountUsernamesLike(_ context.Context, slug string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, u := range r.users {
		if strings.HasPrefix(u.Username, slug) {
			count++
		}
	}
	return count, nil
}

func (r *UserRepo) UpdateProfile(_ context.Context, userID uuid.UUID, params repository.UpdateProfileParams) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return user, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	}

	if params.Username != nil {
		for id, u := range r.users {
			if id != userID && u.Username == *params.Username {
				return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrUsernameTaken)
			}
		}
		user.Username = *params.Username
	}
	if params.Name != nil {
		user.Name = *params.Name
	}

	r.users[userID] = user
	return user, nil
}

func (r *UserRepo) UpdateEmail(_ context.Context, userID uuid.UUID, email string, credentials models.Credentials) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return user, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	}

	for id, u := range r.users {
		if id != userID && u.Email == email {
			return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrEmailTaken)
		}
	}

	user.Email = email
	user.Credentials = credentials
	r.users[userID] = user

	return user, nil
}

func (r *UserRepo) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string, credentials models.Credentials) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return user, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	}

	user.PasswordHash = passwordHash
	user.Credentials = credentials
	r.users[userID] = user

	return user, nil
}

func (r *UserRepo) ConfirmEmail(_ context.Context, userID uuid.UUID, version int) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok || user.Credentials.Version != version {
		return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	}

	user.Confirmed = true
	r.users[userID] = user

	return user, nil
}

func (r *UserRepo) DeleteUser(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	}
	delete(r.users, userID)
	return nil
}

// must be called with the lock held
func (r *UserRepo) findLocked(match func(models.User) bool) (models.User, error) {
	for _, u := range r.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
}
