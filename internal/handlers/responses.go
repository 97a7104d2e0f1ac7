package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/service/auth"
)

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Confirmed bool      `json:"confirmed"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		CreatedAt: u.CreatedAt,
		Email:     u.Email,
		Username:  u.Username,
		Name:      u.Name,
		Confirmed: u.Confirmed,
	}
}

// Public view of another user's profile
type profileResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Name     string    `json:"name"`
}

type authResponse struct {
	User        userResponse `json:"user"`
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

func toAuthResponse(result auth.Result) authResponse {
	return authResponse{
		User:        toUserResponse(result.User),
		AccessToken: result.Pair.Access.Value,
		ExpiresAt:   result.Pair.Access.ExpiresAt,
	}
}

// Every plain-message response gets its own id so clients and support can
// refer to a concrete occurrence
type messageResponse struct {
	ID      uuid.UUID `json:"id"`
	Message string    `json:"message"`
}

func newMessage(message string) messageResponse {
	return messageResponse{ID: uuid.New(), Message: message}
}

// serviceError maps a service error to a transport response. Validation
// details and the password-changed hint are safe to show, everything else
// gets a generic message for its kind.
func serviceError(w http.ResponseWriter, err error) {
	var hint *apperrors.HintError

	switch {
	case errors.As(err, &hint):
		render.ServiceError(w, hint.Msg, http.StatusUnauthorized)

	case errors.Is(err, apperrors.ErrPasswordMismatch):
		render.ServiceError(w, "Passwords do not match", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrSamePassword):
		render.ServiceError(w, "New password must be different from the current one", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrSameName):
		render.ServiceError(w, "Name must be different from the current one", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrSameUsername):
		render.ServiceError(w, "Username must be different from the current one", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrInvalidEmail):
		render.ServiceError(w, "Invalid email", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrInvalidUsername):
		render.ServiceError(w, "Invalid username", http.StatusBadRequest)

	case errors.Is(err, apperrors.ErrUserNotConfirmed):
		render.ServiceError(w, "Please confirm your email", http.StatusUnauthorized)

	case errors.Is(err, apperrors.ErrEmailTaken):
		render.ServiceError(w, "Email already in use", http.StatusConflict)
	case errors.Is(err, apperrors.ErrUsernameTaken):
		render.ServiceError(w, "Username already in use", http.StatusConflict)

	case errors.Is(err, apperrors.ErrValidation):
		render.ServiceError(w, "Invalid request", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrAuthentication):
		render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrNotFound):
		render.ServiceError(w, "Not found", http.StatusNotFound)

	default:
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// requestAudience derives the token audience from the Origin header. Empty
// means "use the configured domain".
func requestAudience(r *http.Request) string {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return ""
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return origin
	}
	return parsed.Host
}
