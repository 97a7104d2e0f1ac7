package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
)

func createTestUser(t *testing.T, repo *UserRepo, email string, username string) models.User {
	t.Helper()

	user, err := repo.CreateUser(context.Background(), repository.CreateUserParams{
		Email:        email,
		Username:     username,
		Name:         "Test User",
		PasswordHash: "hashed-password",
		Credentials:  models.Credentials{Version: 0},
	})
	require.NoError(t, err, "user should be created without errors")
	return user
}

func Test_UserRepo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := NewUserRepo()
		user := createTestUser(t, repo, "john@mail.com", "john.doe")

		byID, err := repo.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, user, byID)

		byEmail, err := repo.GetUserByEmail(ctx, "john@mail.com")
		require.NoError(t, err)
		assert.Equal(t, user, byEmail)

		byUsername, err := repo.GetUserByUsername(ctx, "john.doe")
		require.NoError(t, err)
		assert.Equal(t, user, byUsername)
	})

	t.Run("duplicate email or username", func(t *testing.T) {
		repo := NewUserRepo()
		createTestUser(t, repo, "john@mail.com", "john.doe")

		_, err := repo.CreateUser(ctx, repository.CreateUserParams{Email: "john@mail.com", Username: "other"})
		require.ErrorIs(t, err, apperrors.ErrEmailTaken)

		_, err = repo.CreateUser(ctx, repository.CreateUserParams{Email: "other@mail.com", Username: "john.doe"})
		require.ErrorIs(t, err, apperrors.ErrUsernameTaken)
	})

	t.Run("not found", func(t *testing.T) {
		repo := NewUserRepo()

		_, err := repo.GetUserByID(ctx, uuid.New())
		require.ErrorIs(t, err, apperrors.ErrUserNotFound)

		_, err = repo.GetUserByEmail(ctx, "nobody@mail.com")
		require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})

	t.Run("get by credentials checks version", func(t *testing.T) {
		repo := NewUserRepo()
		user := createTestUser(t, repo, "john@mail.com", "john.doe")

		got, err := repo.GetUserByCredentials(ctx, user.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)

		_, err = repo.GetUserByCredentials(ctx, user.ID, 1)
		require.ErrorIs(t, err, apperrors.ErrUserNotFound, "stale version should not resolve the user")
	})

	t.Run("count usernames like", func(t *testing.T) {
		repo := NewUserRepo()
		createTestUser(t, repo, "one@mail.com", "john.doe")
		createTestUser(t, repo, "two@mail.com", "john.doe1")
		createTestUser(t, repo, "three@mail.com", "jane.doe")

		count, err := repo.CountUsernamesLike(ctx, "john.doe")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("update profile", func(t *testing.T) {
		repo := NewUserRepo()
		user := createTestUser(t, repo, "john@mail.com", "john.doe")

		newName := "John Smith"
		updated, err := repo.UpdateProfile(ctx, user.ID, repository.UpdateProfileParams{Name: &newName})
		require.NoError(t, err)
		assert.Equal(t, "John Smith", updated.Name)
		assert.Equal(t, "john.doe", updated.Username, "username should be untouched when nil")

		createTestUser(t, repo, "jane@mail.com", "jane.doe")
		taken := "jane.doe"
		_, err = repo.UpdateProfile(ctx, user.ID, repository.UpdateProfileParams{Username: &taken})
		require.ErrorIs(t, err, apperrors.ErrUsernameTaken)
	})

	t.Run("update password replaces credentials", func(t *testing.T) {
		repo := NewUserRepo()
		user := createTestUser(t, repo, "john@mail.com", "john.doe")

		creds := user.Credentials
		creds.Version++
		updated, err := repo.UpdatePassword(ctx, user.ID, "new-hash", creds)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", updated.PasswordHash)
		assert.Equal(t, 1, updated.Credentials.Version)
	})

	t.Run("confirm email matches version", func(t *testing.T) {
		repo := NewUserRepo()
		user := createTestUser(t, repo, "john@mail.com", "john.doe")

		_, err := repo.ConfirmEmail(ctx, user.ID, 5)
		require.ErrorIs(t, err, apperrors.ErrUserNotFound)

		confirmed, err := repo.ConfirmEmail(ctx, user.ID, 0)
		require.NoError(t, err)
		assert.True(t, confirmed.Confirmed)
	})

	t.Run("delete user", func(t *testing.T) {
		repo := NewUserRepo()
		user := createTestUser(t, repo, "john@mail.com", "john.doe")

		require.NoError(t, repo.DeleteUser(ctx, user.ID))

		err := repo.DeleteUser(ctx, user.ID)
		require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})
}
