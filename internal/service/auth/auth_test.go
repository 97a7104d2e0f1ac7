package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/cache/rediscache"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/repository"
	"github.com/nkiryanov/authgate/internal/repository/memory"
	"github.com/nkiryanov/authgate/internal/tokens"
)

// Cheap hasher to keep the suite fast
var testHasher = Argon2Hasher{
	Memory:      8 * 1024,
	Time:        1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   16,
}

type sentMail struct {
	user  models.User
	token string
}

// Records sent emails instead of delivering anything
type fakeMailer struct {
	mu            sync.Mutex
	confirmations []sentMail
	resets        []sentMail
}

func (m *fakeMailer) SendConfirmation(_ context.Context, user models.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmations = append(m.confirmations, sentMail{user: user, token: token})
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, user models.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, sentMail{user: user, token: token})
	return nil
}

func (m *fakeMailer) lastConfirmation(t *testing.T) sentMail {
	t.Helper()

	var last sentMail
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if len(m.confirmations) == 0 {
			return false
		}
		last = m.confirmations[len(m.confirmations)-1]
		return true
	}, time.Second, 10*time.Millisecond, "confirmation email should be sent")

	return last
}

func (m *fakeMailer) lastReset(t *testing.T) sentMail {
	t.Helper()

	var last sentMail
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if len(m.resets) == 0 {
			return false
		}
		last = m.resets[len(m.resets)-1]
		return true
	}, time.Second, 10*time.Millisecond, "reset email should be sent")

	return last
}

func (m *fakeMailer) resetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resets)
}

func createTestRepoUser(t *testing.T, repo *memory.UserRepo, email string, username string) models.User {
	t.Helper()

	user, err := repo.CreateUser(context.Background(), repository.CreateUserParams{
		Email:        email,
		Username:     username,
		Name:         "Test User",
		PasswordHash: "irrelevant",
	})
	require.NoError(t, err)
	return user
}

func newTestService(t *testing.T) (*Service, *memory.UserRepo, *fakeMailer) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	codec, err := tokens.New(tokens.Config{
		Issuer:           "authgate-test",
		Domain:           "example.com",
		AccessPrivateKey: key,
		AccessPublicKey:  &key.PublicKey,
		Refresh:          tokens.Symmetric{Secret: "refresh-secret"},
		Confirmation:     tokens.Symmetric{Secret: "confirmation-secret"},
		ResetPassword:    tokens.Symmetric{Secret: "reset-secret"},
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	c := rediscache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	repo := memory.NewUserRepo()
	m := &fakeMailer{}

	s, err := NewService(ServiceConfig{
		Codec:  codec,
		Repo:   repo,
		Cache:  c,
		Mailer: m,
		Hasher: testHasher,
	})
	require.NoError(t, err)

	return s, repo, m
}

// Sign up and confirm the user through the emailed token
func signUpConfirmed(t *testing.T, s *Service, m *fakeMailer, email string, password string) models.User {
	t.Helper()

	_, err := s.SignUp(context.Background(), "John Doe", email, password, password)
	require.NoError(t, err)

	result, err := s.ConfirmEmail(context.Background(), m.lastConfirmation(t).token, "")
	require.NoError(t, err)
	require.True(t, result.User.Confirmed)

	return result.User
}

func Test_SignUp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("mismatched passwords", func(t *testing.T) {
		s, repo, _ := newTestService(t)

		_, err := s.SignUp(ctx, "John Doe", "john@mail.com", "Secret123", "Secret124")
		require.ErrorIs(t, err, apperrors.ErrPasswordMismatch)

		_, err = repo.GetUserByEmail(ctx, "john@mail.com")
		require.ErrorIs(t, err, apperrors.ErrUserNotFound, "nothing should be stored on mismatch")
	})

	t.Run("creates unconfirmed user and emails a token", func(t *testing.T) {
		s, _, m := newTestService(t)

		user, err := s.SignUp(ctx, "  john   doe ", "john@mail.com", "Secret123", "Secret123")
		require.NoError(t, err)

		assert.Equal(t, "John Doe", user.Name, "name should be formatted")
		assert.Equal(t, "john.doe", user.Username, "username should be derived from the name")
		assert.False(t, user.Confirmed)
		assert.Equal(t, 0, user.Credentials.Version)
		assert.NotZero(t, user.Credentials.PasswordUpdatedAt, "password set time should be recorded at creation")
		assert.NoError(t, testHasher.Compare(user.PasswordHash, "Secret123"))

		sent := m.lastConfirmation(t)
		assert.Equal(t, user.Email, sent.user.Email)
		assert.NotEmpty(t, sent.token)
	})

	t.Run("same name gets a suffixed username", func(t *testing.T) {
		s, _, _ := newTestService(t)

		first, err := s.SignUp(ctx, "John Doe", "first@mail.com", "Secret123", "Secret123")
		require.NoError(t, err)

		second, err := s.SignUp(ctx, "John Doe", "second@mail.com", "Secret123", "Secret123")
		require.NoError(t, err)

		assert.Equal(t, "john.doe", first.Username)
		assert.Equal(t, "john.doe1", second.Username)
	})

	t.Run("duplicate email", func(t *testing.T) {
		s, _, _ := newTestService(t)

		_, err := s.SignUp(ctx, "John Doe", "john@mail.com", "Secret123", "Secret123")
		require.NoError(t, err)

		_, err = s.SignUp(ctx, "Jane Doe", "john@mail.com", "Secret123", "Secret123")
		require.ErrorIs(t, err, apperrors.ErrEmailTaken)
	})

	t.Run("email is normalized", func(t *testing.T) {
		s, _, _ := newTestService(t)

		user, err := s.SignUp(ctx, "John Doe", "  John@Mail.COM ", "Secret123", "Secret123")
		require.NoError(t, err)
		assert.Equal(t, "john@mail.com", user.Email)

		_, err = s.SignUp(ctx, "Jane Doe", "JOHN@mail.com", "Secret123", "Secret123")
		require.ErrorIs(t, err, apperrors.ErrEmailTaken, "case variants should be one account")
	})
}

func Test_SignIn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		s, _, _ := newTestService(t)

		_, err := s.SignIn(ctx, "nobody@mail.com", "Secret123", "")

		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("wrong password", func(t *testing.T) {
		s, _, m := newTestService(t)
		signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		_, err := s.SignIn(ctx, "john@mail.com", "Wrong1234", "")

		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("malformed email", func(t *testing.T) {
		s, _, _ := newTestService(t)

		_, err := s.SignIn(ctx, "not@@mail", "Secret123", "")

		require.ErrorIs(t, err, apperrors.ErrInvalidEmail)
	})

	t.Run("malformed username", func(t *testing.T) {
		s, _, _ := newTestService(t)

		_, err := s.SignIn(ctx, "John Doe!!", "Secret123", "")

		require.ErrorIs(t, err, apperrors.ErrInvalidUsername)
	})

	t.Run("unconfirmed user gets a fresh confirmation email", func(t *testing.T) {
		s, _, m := newTestService(t)

		_, err := s.SignUp(ctx, "John Doe", "john@mail.com", "Secret123", "Secret123")
		require.NoError(t, err)
		m.lastConfirmation(t)

		_, err = s.SignIn(ctx, "john@mail.com", "Secret123", "")

		require.ErrorIs(t, err, apperrors.ErrUserNotConfirmed)
		require.Eventually(t, func() bool {
			m.mu.Lock()
			defer m.mu.Unlock()
			return len(m.confirmations) == 2
		}, time.Second, 10*time.Millisecond, "sign-in should resend the confirmation email")
	})

	t.Run("by email", func(t *testing.T) {
		s, _, m := newTestService(t)
		user := signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		result, err := s.SignIn(ctx, "john@mail.com", "Secret123", "")
		require.NoError(t, err)

		assert.Equal(t, user.ID, result.User.ID)
		assert.NotEmpty(t, result.Pair.Access.Value)
		assert.NotEmpty(t, result.Pair.Refresh.Value)
	})

	t.Run("by username", func(t *testing.T) {
		s, _, m := newTestService(t)
		user := signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		result, err := s.SignIn(ctx, user.Username, "Secret123", "")
		require.NoError(t, err)

		assert.Equal(t, user.ID, result.User.ID)
	})

	t.Run("email case does not matter", func(t *testing.T) {
		s, _, m := newTestService(t)
		user := signUpConfirmed(t, s, m, "John@Mail.com", "Secret123")

		result, err := s.SignIn(ctx, "john@MAIL.com", "Secret123", "")
		require.NoError(t, err)

		assert.Equal(t, user.ID, result.User.ID)
	})
}

func Test_RefreshAndLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("refresh rotates the pair and keeps the tokenId", func(t *testing.T) {
		s, _, m := newTestService(t)
		signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		signedIn, err := s.SignIn(ctx, "john@mail.com", "Secret123", "")
		require.NoError(t, err)

		refreshed, err := s.Refresh(ctx, signedIn.Pair.Refresh.Value, "")
		require.NoError(t, err)
		require.NotEmpty(t, refreshed.Pair.Refresh.Value)

		original, err := s.codec.Verify(tokens.CategoryRefresh, signedIn.Pair.Refresh.Value)
		require.NoError(t, err)
		rotated, err := s.codec.Verify(tokens.CategoryRefresh, refreshed.Pair.Refresh.Value)
		require.NoError(t, err)

		assert.Equal(t, original.TokenID, rotated.TokenID, "tokenId should survive rotation")
	})

	t.Run("garbage refresh token", func(t *testing.T) {
		s, _, _ := newTestService(t)

		_, err := s.Refresh(ctx, "definitely.not.a-token", "")

		require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	})

	t.Run("logout blacklists the whole lineage", func(t *testing.T) {
		s, _, m := newTestService(t)
		signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		signedIn, err := s.SignIn(ctx, "john@mail.com", "Secret123", "")
		require.NoError(t, err)

		refreshed, err := s.Refresh(ctx, signedIn.Pair.Refresh.Value, "")
		require.NoError(t, err)

		// Logging out with the ORIGINAL token must kill the rotated one too
		require.NoError(t, s.Logout(ctx, signedIn.Pair.Refresh.Value))

		_, err = s.Refresh(ctx, refreshed.Pair.Refresh.Value, "")
		require.ErrorIs(t, err, apperrors.ErrTokenBlacklisted)
	})

	t.Run("logout is idempotent", func(t *testing.T) {
		s, _, m := newTestService(t)
		signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		signedIn, err := s.SignIn(ctx, "john@mail.com", "Secret123", "")
		require.NoError(t, err)

		require.NoError(t, s.Logout(ctx, signedIn.Pair.Refresh.Value))
		require.NoError(t, s.Logout(ctx, signedIn.Pair.Refresh.Value))
	})

	t.Run("refresh issued before a password change is stale", func(t *testing.T) {
		s, _, m := newTestService(t)
		user := signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		signedIn, err := s.SignIn(ctx, "john@mail.com", "Secret123", "")
		require.NoError(t, err)

		_, err = s.ChangePassword(ctx, user.ID, "Secret123", "Fresh1234", "Fresh1234", "")
		require.NoError(t, err)

		_, err = s.Refresh(ctx, signedIn.Pair.Refresh.Value, "")
		require.ErrorIs(t, err, apperrors.ErrStaleCredentials)
	})
}

func Test_ConfirmEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("confirms and signs in", func(t *testing.T) {
		s, _, m := newTestService(t)

		_, err := s.SignUp(ctx, "John Doe", "john@mail.com", "Secret123", "Secret123")
		require.NoError(t, err)

		result, err := s.ConfirmEmail(ctx, m.lastConfirmation(t).token, "")
		require.NoError(t, err)

		assert.True(t, result.User.Confirmed)
		assert.NotEmpty(t, result.Pair.Access.Value)
	})

	t.Run("token from an older credentials version", func(t *testing.T) {
		s, repo, m := newTestService(t)

		user, err := s.SignUp(ctx, "John Doe", "john@mail.com", "Secret123", "Secret123")
		require.NoError(t, err)
		token := m.lastConfirmation(t).token

		// Bump the version behind the token's back
		creds := user.Credentials
		creds.Bump(time.Now())
		_, err = repo.UpdatePassword(ctx, user.ID, user.PasswordHash, creds)
		require.NoError(t, err)

		_, err = s.ConfirmEmail(ctx, token, "")
		require.ErrorIs(t, err, apperrors.ErrStaleCredentials)
	})

	t.Run("garbage token", func(t *testing.T) {
		s, _, _ := newTestService(t)

		_, err := s.ConfirmEmail(ctx, "definitely.not.a-token", "")

		require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	})
}

func Test_PasswordReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown email is silently accepted", func(t *testing.T) {
		s, _, m := newTestService(t)

		require.NoError(t, s.ForgotPassword(ctx, "nobody@mail.com"))
		assert.Equal(t, 0, m.resetCount())
	})

	t.Run("full reset flow", func(t *testing.T) {
		s, _, m := newTestService(t)
		signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		require.NoError(t, s.ForgotPassword(ctx, "john@mail.com"))
		token := m.lastReset(t).token

		require.NoError(t, s.ResetPassword(ctx, token, "Fresh1234", "Fresh1234"))

		_, err := s.SignIn(ctx, "john@mail.com", "Fresh1234", "")
		require.NoError(t, err, "new password should work")

		_, err = s.SignIn(ctx, "john@mail.com", "Secret123", "")
		require.ErrorIs(t, err, apperrors.ErrPasswordChanged, "old password should get the hint")

		var hint *apperrors.HintError
		require.True(t, errors.As(err, &hint))
		assert.Equal(t, "You recently changed your password", hint.Msg)
	})

	t.Run("email case does not matter", func(t *testing.T) {
		s, _, m := newTestService(t)
		signUpConfirmed(t, s, m, "John@Mail.com", "Secret123")

		require.NoError(t, s.ForgotPassword(ctx, "john@mail.com"))

		sent := m.lastReset(t)
		assert.Equal(t, "john@mail.com", sent.user.Email)
	})

	t.Run("reset token is single use", func(t *testing.T) {
		s, _, m := newTestService(t)
		signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		require.NoError(t, s.ForgotPassword(ctx, "john@mail.com"))
		token := m.lastReset(t).token

		require.NoError(t, s.ResetPassword(ctx, token, "Fresh1234", "Fresh1234"))

		err := s.ResetPassword(ctx, token, "Again1234", "Again1234")
		require.ErrorIs(t, err, apperrors.ErrStaleCredentials, "version bump should invalidate the used token")
	})

	t.Run("mismatched passwords", func(t *testing.T) {
		s, _, _ := newTestService(t)

		err := s.ResetPassword(ctx, "some-token", "Fresh1234", "Other1234")

		require.ErrorIs(t, err, apperrors.ErrPasswordMismatch)
	})
}

func Test_ChangePassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("wrong old password", func(t *testing.T) {
		s, _, m := newTestService(t)
		user := signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		_, err := s.ChangePassword(ctx, user.ID, "Wrong1234", "Fresh1234", "Fresh1234", "")

		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("mismatched passwords leave the password untouched", func(t *testing.T) {
		s, _, m := newTestService(t)
		user := signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		_, err := s.ChangePassword(ctx, user.ID, "Secret123", "Fresh1234", "Other1234", "")
		require.ErrorIs(t, err, apperrors.ErrPasswordMismatch)

		_, err = s.SignIn(ctx, "john@mail.com", "Secret123", "")
		require.NoError(t, err, "current password should still work")
	})

	t.Run("new password equals the current one", func(t *testing.T) {
		s, _, m := newTestService(t)
		user := signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		_, err := s.ChangePassword(ctx, user.ID, "Secret123", "Secret123", "Secret123", "")

		require.ErrorIs(t, err, apperrors.ErrSamePassword)
	})

	t.Run("changes password and issues a fresh pair", func(t *testing.T) {
		s, _, m := newTestService(t)
		user := signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		result, err := s.ChangePassword(ctx, user.ID, "Secret123", "Fresh1234", "Fresh1234", "")
		require.NoError(t, err)

		assert.Equal(t, user.Credentials.Version+1, result.User.Credentials.Version)
		assert.NotEmpty(t, result.Pair.Refresh.Value)

		_, err = s.SignIn(ctx, "john@mail.com", "Fresh1234", "")
		require.NoError(t, err)
	})
}

func Test_Auth(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("resolves the user by access token", func(t *testing.T) {
		s, _, m := newTestService(t)
		user := signUpConfirmed(t, s, m, "john@mail.com", "Secret123")

		signedIn, err := s.SignIn(ctx, "john@mail.com", "Secret123", "")
		require.NoError(t, err)

		got, err := s.Auth(ctx, signedIn.Pair.Access.Value)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
	})

	t.Run("garbage access token", func(t *testing.T) {
		s, _, _ := newTestService(t)

		_, err := s.Auth(ctx, "definitely.not.a-token")

		require.ErrorIs(t, err, apperrors.ErrTokenInvalid)
	})
}
