package tokens

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/models"
)

// Category of a signed token. Each category has its own signing material,
// lifetime and claims shape.
type Category string

const (
	CategoryAccess        Category = "access"
	CategoryRefresh       Category = "refresh"
	CategoryConfirmation  Category = "confirmation"
	CategoryResetPassword Category = "resetPassword"
)

const (
	defaultAccessTTL        = 15 * time.Minute
	defaultRefreshTTL       = 7 * 24 * time.Hour
	defaultConfirmationTTL  = 24 * time.Hour
	defaultResetPasswordTTL = 30 * time.Minute
)

// Symmetric signing material for one token category
type Symmetric struct {
	Secret string
	TTL    time.Duration
}

type Config struct {
	// Application instance id, used as token issuer
	// Required to be set
	Issuer string

	// Domain is the literal default audience embedded on mint
	// Required to be set
	Domain string

	// AudiencePattern is a regular expression the audience claim is matched
	// against on verify. Defaults to the domain itself (quoted), which accepts
	// only tokens minted for it.
	AudiencePattern string

	// Access tokens are signed asymmetrically (RS256) so third parties can
	// verify them with the public key alone
	AccessPrivateKey *rsa.PrivateKey
	AccessPublicKey  *rsa.PublicKey
	AccessTTL        time.Duration

	// Symmetric (HS256) categories
	Refresh       Symmetric
	Confirmation  Symmetric
	ResetPassword Symmetric
}

// Token is the decoded, verified view of a signed token
type Token struct {
	UserID    uuid.UUID
	Version   int
	TokenID   string
	Subject   string
	ExpiresAt time.Time
}

type tokenClaims struct {
	UserID  string `json:"id"`
	Version *int   `json:"version,omitempty"`
	TokenID string `json:"tokenId,omitempty"`
	jwt.RegisteredClaims
}

// Codec mints and verifies signed tokens for all four categories
type Codec struct {
	issuer     string
	domain     string
	audienceRe *regexp.Regexp

	accessPrivateKey *rsa.PrivateKey
	accessPublicKey  *rsa.PublicKey

	ttl map[Category]time.Duration

	refreshSecret       string
	confirmationSecret  string
	resetPasswordSecret string
}

func New(cfg Config) (*Codec, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("issuer must not be empty")
	}
	if cfg.Domain == "" {
		return nil, errors.New("domain must not be empty")
	}
	if cfg.AccessPrivateKey == nil || cfg.AccessPublicKey == nil {
		return nil, errors.New("access token key pair must be set")
	}

	for name, secret := range map[string]string{
		"refresh":       cfg.Refresh.Secret,
		"confirmation":  cfg.Confirmation.Secret,
		"resetPassword": cfg.ResetPassword.Secret,
	} {
		if secret == "" {
			return nil, fmt.Errorf("%s secret must not be empty", name)
		}
	}

	pattern := cfg.AudiencePattern
	if pattern == "" {
		pattern = regexp.QuoteMeta(cfg.Domain)
	}
	audienceRe, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid audience pattern: %w", err)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTTL)
	setDefaultDuration(&cfg.Refresh.TTL, defaultRefreshTTL)
	setDefaultDuration(&cfg.Confirmation.TTL, defaultConfirmationTTL)
	setDefaultDuration(&cfg.ResetPassword.TTL, defaultResetPasswordTTL)

	return &Codec{
		issuer:              cfg.Issuer,
		domain:              cfg.Domain,
		audienceRe:          audienceRe,
		accessPrivateKey:    cfg.AccessPrivateKey,
		accessPublicKey:     cfg.AccessPublicKey,
		refreshSecret:       cfg.Refresh.Secret,
		confirmationSecret:  cfg.Confirmation.Secret,
		resetPasswordSecret: cfg.ResetPassword.Secret,
		ttl: map[Category]time.Duration{
			CategoryAccess:        cfg.AccessTTL,
			CategoryRefresh:       cfg.Refresh.TTL,
			CategoryConfirmation:  cfg.Confirmation.TTL,
			CategoryResetPassword: cfg.ResetPassword.TTL,
		},
	}, nil
}

// TTL returns the configured lifetime of the category
func (c *Codec) TTL(category Category) time.Duration {
	return c.ttl[category]
}

// Mint signs a token of the given category for the user.
//
// audience defaults to the configured domain when empty. tokenID is only
// meaningful for refresh tokens: pass the previous one to keep the rotation
// lineage, or empty to start a new one.
func (c *Codec) Mint(category Category, user models.User, audience string, tokenID string) (models.IssuedToken, error) {
	var issued models.IssuedToken

	if audience == "" {
		audience = c.domain
	}

	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(c.ttl[category])

	claims := tokenClaims{
		UserID: user.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   user.Email,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	var method jwt.SigningMethod
	var key any

	switch category {
	case CategoryAccess:
		method = jwt.SigningMethodRS256
		key = c.accessPrivateKey

	case CategoryRefresh:
		if tokenID == "" {
			tokenID = uuid.NewString()
		}
		version := user.Credentials.Version
		claims.Version = &version
		claims.TokenID = tokenID

		method = jwt.SigningMethodHS256
		key = []byte(c.refreshSecret)

	case CategoryConfirmation, CategoryResetPassword:
		version := user.Credentials.Version
		claims.Version = &version

		method = jwt.SigningMethodHS256
		key = []byte(c.secret(category))

	default:
		return issued, fmt.Errorf("unknown token category %q", category)
	}

	value, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		return issued, fmt.Errorf("signing %s token: %w", category, apperrors.ErrInternal)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Verify checks the token signature, issuer, audience and age, and returns
// the decoded claims.
//
// Expired tokens fail with apperrors.ErrTokenExpired, anything else that does
// not verify fails with apperrors.ErrTokenInvalid. Both are authentication
// failures; the split exists for diagnostics only.
func (c *Codec) Verify(category Category, token string) (Token, error) {
	var decoded Token

	var method string
	var key any

	switch category {
	case CategoryAccess:
		method = jwt.SigningMethodRS256.Alg()
		key = c.accessPublicKey
	case CategoryRefresh, CategoryConfirmation, CategoryResetPassword:
		method = jwt.SigningMethodHS256.Alg()
		key = []byte(c.secret(category))
	default:
		return decoded, fmt.Errorf("unknown token category %q", category)
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{method}),
		jwt.WithIssuer(c.issuer),
		jwt.WithIssuedAt(),
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return decoded, fmt.Errorf("verify %s token: %w", category, apperrors.ErrTokenExpired)
	default:
		return decoded, fmt.Errorf("verify %s token: %w", category, apperrors.ErrTokenInvalid)
	}

	// Tokens must not outlive the category lifetime even if they carry a
	// later expiry claim
	if claims.IssuedAt != nil && time.Since(claims.IssuedAt.Time) > c.ttl[category] {
		return decoded, fmt.Errorf("%s token is too old: %w", category, apperrors.ErrTokenExpired)
	}

	if !c.audienceMatches(claims.Audience) {
		return decoded, fmt.Errorf("%s token audience mismatch: %w", category, apperrors.ErrTokenInvalid)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return decoded, fmt.Errorf("%s token subject id malformed: %w", category, apperrors.ErrTokenInvalid)
	}

	decoded = Token{
		UserID:  userID,
		TokenID: claims.TokenID,
		Subject: claims.Subject,
	}
	if claims.Version != nil {
		decoded.Version = *claims.Version
	}
	if claims.ExpiresAt != nil {
		decoded.ExpiresAt = claims.ExpiresAt.Time
	}

	return decoded, nil
}

func (c *Codec) secret(category Category) string {
	switch category {
	case CategoryRefresh:
		return c.refreshSecret
	case CategoryConfirmation:
		return c.confirmationSecret
	case CategoryResetPassword:
		return c.resetPasswordSecret
	default:
		return ""
	}
}

func (c *Codec) audienceMatches(audience jwt.ClaimStrings) bool {
	for _, aud := range audience {
		if c.audienceRe.MatchString(aud) {
			return true
		}
	}
	return false
}
