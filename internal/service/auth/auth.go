// Package auth implements the authentication flows: sign-up with email
// confirmation, sign-in, token refresh and revocation, password reset and
// change.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/cache"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/mailer"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
	"github.com/nkiryanov/authgate/internal/tokens"
)

var usernameRe = regexp.MustCompile(`^[a-z0-9]+(?:\.[a-z0-9]+)*$`)

// Result of any operation that authenticates the user
type Result struct {
	User models.User
	Pair models.TokenPair
}

type ServiceConfig struct {
	Codec  *tokens.Codec
	Repo   repository.UserRepo
	Cache  cache.Cache
	Mailer mailer.Mailer
	Logger logger.Logger

	// Hasher to use during registration or login
	// DefaultHasher is used when not set
	Hasher PasswordHasher
}

type Service struct {
	codec  *tokens.Codec
	repo   repository.UserRepo
	cache  cache.Cache
	mailer mailer.Mailer
	hasher PasswordHasher
	logger logger.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Codec == nil || cfg.Repo == nil || cfg.Cache == nil || cfg.Mailer == nil {
		return nil, errors.New("codec, repo, cache and mailer must not be nil")
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher()
	}

	l := cfg.Logger
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		codec:  cfg.Codec,
		repo:   cfg.Repo,
		cache:  cfg.Cache,
		mailer: cfg.Mailer,
		hasher: hasher,
		logger: l,
	}, nil
}

// SignUp registers a user and sends the confirmation email. The user is NOT
// authenticated until the email is confirmed.
func (s *Service) SignUp(ctx context.Context, name string, email string, password1 string, password2 string) (models.User, error) {
	if err := ComparePasswords(password1, password2); err != nil {
		return models.User{}, err
	}

	email = NormalizeEmail(email)
	name = formatName(name)
	username, err := generateUsername(ctx, s.repo, name)
	if err != nil {
		return models.User{}, err
	}

	hash, err := s.hasher.Hash(password1)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	now := time.Now().Unix()
	user, err := s.repo.CreateUser(ctx, repository.CreateUserParams{
		Email:        email,
		Username:     username,
		Name:         name,
		PasswordHash: hash,
		Credentials: models.Credentials{
			Version:           0,
			PasswordUpdatedAt: now,
			UpdatedAt:         now,
		},
	})
	if err != nil {
		return models.User{}, err
	}

	s.sendConfirmation(ctx, user)

	return user, nil
}

// SignIn authenticates by email or username and issues a token pair.
// Unconfirmed users get a fresh confirmation email instead of tokens.
func (s *Service) SignIn(ctx context.Context, emailOrUsername string, password string, audience string) (Result, error) {
	user, err := s.findByEmailOrUsername(ctx, emailOrUsername)

	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUserNotFound):
		return Result{}, fmt.Errorf("auth: %w", apperrors.ErrInvalidCredentials)
	default:
		return Result{}, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return Result{}, checkLastPassword(s.hasher, user.Credentials, password)
	}

	if !user.Confirmed {
		s.sendConfirmation(ctx, user)
		return Result{}, fmt.Errorf("auth: %w", apperrors.ErrUserNotConfirmed)
	}

	pair, err := s.mintAuthPair(user, audience, "")
	if err != nil {
		return Result{}, err
	}

	return Result{User: user, Pair: pair}, nil
}

// Refresh rotates the token pair. The tokenId of the incoming refresh token
// survives the rotation, so blacklisting it once kills the whole lineage.
func (s *Service) Refresh(ctx context.Context, refreshToken string, audience string) (Result, error) {
	decoded, err := s.codec.Verify(tokens.CategoryRefresh, refreshToken)
	if err != nil {
		return Result{}, err
	}

	if err := s.checkBlacklist(ctx, decoded.UserID, decoded.TokenID); err != nil {
		return Result{}, err
	}

	user, err := s.userByCredentials(ctx, decoded.UserID, decoded.Version)
	if err != nil {
		return Result{}, err
	}

	pair, err := s.mintAuthPair(user, audience, decoded.TokenID)
	if err != nil {
		return Result{}, err
	}

	return Result{User: user, Pair: pair}, nil
}

// Logout blacklists the refresh token until its natural expiry.
// Logging out twice with the same token is fine.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	decoded, err := s.codec.Verify(tokens.CategoryRefresh, refreshToken)
	if err != nil {
		return err
	}

	ttl := time.Until(decoded.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	key := blacklistKey(decoded.UserID, decoded.TokenID)
	value := strconv.FormatInt(time.Now().Unix(), 10)
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		return fmt.Errorf("can't blacklist token: %w", err)
	}

	return nil
}

// ConfirmEmail activates the account by the emailed token and signs the
// user in right away.
func (s *Service) ConfirmEmail(ctx context.Context, token string, audience string) (Result, error) {
	decoded, err := s.codec.Verify(tokens.CategoryConfirmation, token)
	if err != nil {
		return Result{}, err
	}

	user, err := s.repo.ConfirmEmail(ctx, decoded.UserID, decoded.Version)

	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUserNotFound):
		return Result{}, fmt.Errorf("auth: %w", apperrors.ErrStaleCredentials)
	default:
		return Result{}, err
	}

	pair, err := s.mintAuthPair(user, audience, "")
	if err != nil {
		return Result{}, err
	}

	return Result{User: user, Pair: pair}, nil
}

// ForgotPassword emails a reset link. Unknown emails are silently accepted
// so the endpoint can't be used to probe which emails are registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))

	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUserNotFound):
		return nil
	default:
		return err
	}

	issued, err := s.codec.Mint(tokens.CategoryResetPassword, user, "", "")
	if err != nil {
		return err
	}

	s.sendAsync(ctx, "password reset", user, issued.Value, s.mailer.SendPasswordReset)
	return nil
}

// ResetPassword sets a new password by the emailed reset token. Bumps the
// credentials version, so every token issued before it becomes stale.
func (s *Service) ResetPassword(ctx context.Context, token string, password1 string, password2 string) error {
	if err := ComparePasswords(password1, password2); err != nil {
		return err
	}

	decoded, err := s.codec.Verify(tokens.CategoryResetPassword, token)
	if err != nil {
		return err
	}

	user, err := s.userByCredentials(ctx, decoded.UserID, decoded.Version)
	if err != nil {
		return err
	}

	if _, err := s.updatePassword(ctx, user, password1); err != nil {
		return err
	}

	return nil
}

// ChangePassword replaces the password of an authenticated user and issues
// a fresh token pair bound to the new credentials version.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, password1 string, password2 string, audience string) (Result, error) {
	if err := ComparePasswords(password1, password2); err != nil {
		return Result{}, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	if err := s.hasher.Compare(user.PasswordHash, oldPassword); err != nil {
		return Result{}, checkLastPassword(s.hasher, user.Credentials, oldPassword)
	}

	if s.hasher.Compare(user.PasswordHash, password1) == nil {
		return Result{}, fmt.Errorf("auth: %w", apperrors.ErrSamePassword)
	}

	user, err = s.updatePassword(ctx, user, password1)
	if err != nil {
		return Result{}, err
	}

	pair, err := s.mintAuthPair(user, audience, "")
	if err != nil {
		return Result{}, err
	}

	return Result{User: user, Pair: pair}, nil
}

// Auth resolves the user behind an access token. Used by the middleware.
func (s *Service) Auth(ctx context.Context, accessToken string) (models.User, error) {
	decoded, err := s.codec.Verify(tokens.CategoryAccess, accessToken)
	if err != nil {
		return models.User{}, err
	}

	return s.repo.GetUserByID(ctx, decoded.UserID)
}

func (s *Service) updatePassword(ctx context.Context, user models.User, password string) (models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	creds := user.Credentials
	creds.RecordPasswordChange(user.PasswordHash, time.Now())

	return s.repo.UpdatePassword(ctx, user.ID, hash, creds)
}

func (s *Service) mintAuthPair(user models.User, audience string, tokenID string) (models.TokenPair, error) {
	access, err := s.codec.Mint(tokens.CategoryAccess, user, audience, "")
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := s.codec.Mint(tokens.CategoryRefresh, user, audience, tokenID)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *Service) findByEmailOrUsername(ctx context.Context, emailOrUsername string) (models.User, error) {
	if strings.Contains(emailOrUsername, "@") {
		email := NormalizeEmail(emailOrUsername)
		if _, err := mail.ParseAddress(email); err != nil {
			return models.User{}, fmt.Errorf("auth: %w", apperrors.ErrInvalidEmail)
		}
		return s.repo.GetUserByEmail(ctx, email)
	}

	if !usernameRe.MatchString(emailOrUsername) {
		return models.User{}, fmt.Errorf("auth: %w", apperrors.ErrInvalidUsername)
	}

	return s.repo.GetUserByUsername(ctx, emailOrUsername)
}

func (s *Service) userByCredentials(ctx context.Context, userID uuid.UUID, version int) (models.User, error) {
	user, err := s.repo.GetUserByCredentials(ctx, userID, version)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, apperrors.ErrUserNotFound):
		return user, fmt.Errorf("auth: %w", apperrors.ErrStaleCredentials)
	default:
		return user, err
	}
}

func (s *Service) checkBlacklist(ctx context.Context, userID uuid.UUID, tokenID string) error {
	_, err := s.cache.Get(ctx, blacklistKey(userID, tokenID))

	switch {
	case err == nil:
		return fmt.Errorf("auth: %w", apperrors.ErrTokenBlacklisted)
	case errors.Is(err, cache.ErrMiss):
		return nil
	default:
		return fmt.Errorf("can't check blacklist: %w", err)
	}
}

func (s *Service) sendConfirmation(ctx context.Context, user models.User) {
	issued, err := s.codec.Mint(tokens.CategoryConfirmation, user, "", "")
	if err != nil {
		s.logger.Error("can't mint confirmation token", "error", err, "email", user.Email)
		return
	}

	s.sendAsync(ctx, "confirmation", user, issued.Value, s.mailer.SendConfirmation)
}

// Emails are fire and forget: the request never waits for the provider and
// delivery failures only show up in the log
func (s *Service) sendAsync(ctx context.Context, kind string, user models.User, token string, send func(context.Context, models.User, string) error) {
	ctx = context.WithoutCancel(ctx)

	go func() {
		if err := send(ctx, user, token); err != nil {
			s.logger.Error("can't send email", "kind", kind, "email", user.Email, "error", err)
		}
	}()
}

func blacklistKey(userID uuid.UUID, tokenID string) string {
	return fmt.Sprintf("blacklist:%s:%s", userID, tokenID)
}
