package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, email, username, name, password_hash, confirmed, credentials`

const createUser = `-- name: CreateUser
INSERT INTO users (email, username, name, password_hash, credentials)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser,
		params.Email,
		params.Username,
		params.Name,
		params.PasswordHash,
		params.Credentials,
	)
	user, err := pgx.CollectOneRow(rows, rowToUser)
	if err != nil {
		return user, mapConstraintErr(err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + `
FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, userID)
	return collectUser(rows)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + `
FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows)
}

const getUserByUsername = `-- name: GetUserByUsername
SELECT ` + userColumns + `
FROM users
WHERE username = $1
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByUsername, username)
	return collectUser(rows)
}

const getUserByCredentials = `-- name: GetUserByCredentials
SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND (credentials->>'version')::int = $2
`

func (r *UserRepo) GetUserByCredentials(ctx context.Context, userID uuid.UUID, version int) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByCredentials, userID, version)
	return collectUser(rows)
}

const countUsernamesLike = `-- name: CountUsernamesLike
SELECT count(*)
FROM users
WHERE username LIKE $1 || '%'
`

func (r *UserRepo) CountUsernamesLike(ctx context.Context, slug string) (int, error) {
	var count int
	err := r.DB.QueryRow(ctx, countUsernamesLike, slug).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}

const updateProfile = `-- name: UpdateProfile
UPDATE users
SET name     = COALESCE($2, name),
    username = COALESCE($3, username)
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, params repository.UpdateProfileParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updateProfile, userID, params.Name, params.Username)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	default:
		return user, mapConstraintErr(err)
	}
}

const updateEmail = `-- name: UpdateEmail
UPDATE users
SET email = $2, credentials = $3
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) UpdateEmail(ctx context.Context, userID uuid.UUID, email string, credentials models.Credentials) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updateEmail, userID, email, credentials)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	default:
		return user, mapConstraintErr(err)
	}
}

const updatePassword = `-- name: UpdatePassword
UPDATE users
SET password_hash = $2, credentials = $3
WHERE id = $1
RETURNING ` + userColumns

func (r *UserRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string, credentials models.Credentials) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updatePassword, userID, passwordHash, credentials)
	return collectUser(rows)
}

const confirmEmail = `-- name: ConfirmEmail
UPDATE users
SET confirmed = TRUE
WHERE id = $1 AND (credentials->>'version')::int = $2
RETURNING ` + userColumns

func (r *UserRepo) ConfirmEmail(ctx context.Context, userID uuid.UUID, version int) (models.User, error) {
	rows, _ := r.DB.Query(ctx, confirmEmail, userID, version)
	return collectUser(rows)
}

const deleteUser = `-- name: DeleteUser
DELETE FROM users
WHERE id = $1
`

func (r *UserRepo) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deleteUser, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	}
	return nil
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, fmt.Errorf("repo error: %w", apperrors.ErrUserNotFound)
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Email, &u.Username, &u.Name, &u.PasswordHash, &u.Confirmed, &u.Credentials)
	return u, err
}

// The unique indexes on email and username are the single authority on
// uniqueness; concurrent sign-ups race on the constraint, not on a pre-check
func mapConstraintErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
		switch pgErr.ConstraintName {
		case "users_email_key":
			return fmt.Errorf("repo error: %w", apperrors.ErrEmailTaken)
		case "users_username_key":
			return fmt.Errorf("repo error: %w", apperrors.ErrUsernameTaken)
		}
	}
	return fmt.Errorf("db error: %w", err)
}
