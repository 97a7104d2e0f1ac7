// Package user implements profile management for authenticated users.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
	"github.com/nkiryanov/authgate/internal/service/auth"
)

type Service struct {
	repo   repository.UserRepo
	hasher auth.PasswordHasher
}

func NewService(repo repository.UserRepo, hasher auth.PasswordHasher) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repo must not be nil")
	}
	if hasher == nil {
		hasher = auth.DefaultHasher()
	}

	return &Service{repo: repo, hasher: hasher}, nil
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return s.repo.GetUserByUsername(ctx, username)
}

// Optional fields, nil means "leave as is"
type UpdateParams struct {
	Name     *string
	Username *string
}

// Update changes the profile fields. A new value equal to the current one is
// rejected so clients notice no-op submits.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, params UpdateParams) (models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return user, err
	}

	if params.Name != nil && *params.Name == user.Name {
		return user, fmt.Errorf("user: %w", apperrors.ErrSameName)
	}
	if params.Username != nil && *params.Username == user.Username {
		return user, fmt.Errorf("user: %w", apperrors.ErrSameUsername)
	}

	return s.repo.UpdateProfile(ctx, userID, repository.UpdateProfileParams{
		Name:     params.Name,
		Username: params.Username,
	})
}

// UpdateEmail replaces the email after re-checking the password. Bumps the
// credentials version: every token issued before it becomes stale.
func (s *Service) UpdateEmail(ctx context.Context, userID uuid.UUID, email string, password string) (models.User, error) {
	user, err := s.verifyPassword(ctx, userID, password)
	if err != nil {
		return user, err
	}

	creds := user.Credentials
	creds.Bump(time.Now())

	return s.repo.UpdateEmail(ctx, userID, auth.NormalizeEmail(email), creds)
}

// Delete removes the account after re-checking the password
func (s *Service) Delete(ctx context.Context, userID uuid.UUID, password string) error {
	if _, err := s.verifyPassword(ctx, userID, password); err != nil {
		return err
	}

	return s.repo.DeleteUser(ctx, userID)
}

func (s *Service) verifyPassword(ctx context.Context, userID uuid.UUID, password string) (models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return user, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return user, fmt.Errorf("user: %w", apperrors.ErrInvalidCredentials)
	}

	return user, nil
}
