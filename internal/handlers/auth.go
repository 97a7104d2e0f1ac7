package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/handlers/userctx"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/service/auth"
)

const DefaultRefreshCookieName = "refresh_token"

type authService interface {
	SignUp(ctx context.Context, name string, email string, password1 string, password2 string) (models.User, error)
	SignIn(ctx context.Context, emailOrUsername string, password string, audience string) (auth.Result, error)
	Refresh(ctx context.Context, refreshToken string, audience string) (auth.Result, error)
	Logout(ctx context.Context, refreshToken string) error
	ConfirmEmail(ctx context.Context, token string, audience string) (auth.Result, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token string, password1 string, password2 string) error
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword string, password1 string, password2 string, audience string) (auth.Result, error)
}

type AuthHandler struct {
	authService authService

	// Name of the httpOnly cookie holding the refresh token
	cookieName string
}

func NewAuth(as authService, cookieName string) *AuthHandler {
	if cookieName == "" {
		cookieName = DefaultRefreshCookieName
	}
	return &AuthHandler{authService: as, cookieName: cookieName}
}

func (h *AuthHandler) signUp(w http.ResponseWriter, r *http.Request) {
	type SignUpRequest struct {
		Name      string `json:"name" validate:"required,min=3,max=100"`
		Email     string `json:"email" validate:"required,email,max=250"`
		Password1 string `json:"password1" validate:"required,password"`
		Password2 string `json:"password2" validate:"required"`
	}

	data, err := render.BindAndValidate[SignUpRequest](w, r)
	if err != nil {
		return
	}

	_, err = h.authService.SignUp(r.Context(), data.Name, data.Email, data.Password1, data.Password2)
	if err != nil {
		serviceError(w, err)
		return
	}

	render.JSONWithStatus(w, newMessage("User registered, confirmation email sent"), http.StatusCreated)
}

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request) {
	type SignInRequest struct {
		EmailOrUsername string `json:"emailOrUsername" validate:"required,min=3,max=250"`
		Password        string `json:"password" validate:"required"`
	}

	data, err := render.BindAndValidate[SignInRequest](w, r)
	if err != nil {
		return
	}

	result, err := h.authService.SignIn(r.Context(), data.EmailOrUsername, data.Password, requestAudience(r))
	if err != nil {
		serviceError(w, err)
		return
	}

	h.setRefreshCookie(w, result.Pair.Refresh)
	render.JSON(w, toAuthResponse(result))
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	refresh, ok := h.refreshFromRequest(r)
	if !ok {
		render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
		return
	}

	result, err := h.authService.Refresh(r.Context(), refresh, requestAudience(r))
	if err != nil {
		serviceError(w, err)
		return
	}

	h.setRefreshCookie(w, result.Pair.Refresh)
	render.JSON(w, toAuthResponse(result))
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	refresh, ok := h.refreshFromRequest(r)
	if !ok {
		render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
		return
	}

	if err := h.authService.Logout(r.Context(), refresh); err != nil {
		serviceError(w, err)
		return
	}

	h.clearRefreshCookie(w)
	render.JSON(w, newMessage("User logged out"))
}

func (h *AuthHandler) confirmEmail(w http.ResponseWriter, r *http.Request) {
	type ConfirmEmailRequest struct {
		ConfirmationToken string `json:"confirmationToken" validate:"required"`
	}

	data, err := render.BindAndValidate[ConfirmEmailRequest](w, r)
	if err != nil {
		return
	}

	result, err := h.authService.ConfirmEmail(r.Context(), data.ConfirmationToken, requestAudience(r))
	if err != nil {
		serviceError(w, err)
		return
	}

	h.setRefreshCookie(w, result.Pair.Refresh)
	render.JSON(w, toAuthResponse(result))
}

func (h *AuthHandler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	type ForgotPasswordRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	data, err := render.BindAndValidate[ForgotPasswordRequest](w, r)
	if err != nil {
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), data.Email); err != nil {
		serviceError(w, err)
		return
	}

	// Same answer whether the email is registered or not
	render.JSON(w, newMessage("Reset password email sent"))
}

func (h *AuthHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	type ResetPasswordRequest struct {
		ResetToken string `json:"resetToken" validate:"required"`
		Password1  string `json:"password1" validate:"required,password"`
		Password2  string `json:"password2" validate:"required"`
	}

	data, err := render.BindAndValidate[ResetPasswordRequest](w, r)
	if err != nil {
		return
	}

	err = h.authService.ResetPassword(r.Context(), data.ResetToken, data.Password1, data.Password2)
	if err != nil {
		serviceError(w, err)
		return
	}

	render.JSON(w, newMessage("Password reset successfully"))
}

// updatePassword requires an authenticated user: the route is mounted
// behind the auth middleware
func (h *AuthHandler) updatePassword(w http.ResponseWriter, r *http.Request) {
	type UpdatePasswordRequest struct {
		Password  string `json:"password" validate:"required"`
		Password1 string `json:"password1" validate:"required,password"`
		Password2 string `json:"password2" validate:"required"`
	}

	user, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	data, err := render.BindAndValidate[UpdatePasswordRequest](w, r)
	if err != nil {
		return
	}

	result, err := h.authService.ChangePassword(r.Context(), user.ID, data.Password, data.Password1, data.Password2, requestAudience(r))
	if err != nil {
		serviceError(w, err)
		return
	}

	h.setRefreshCookie(w, result.Pair.Refresh)
	render.JSON(w, toAuthResponse(result))
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, refresh models.IssuedToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    refresh.Value,
		Path:     "/api/auth",
		Expires:  refresh.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// refreshFromRequest takes the refresh token from the cookie, falling back
// to the JSON body for clients that can not carry cookies
func (h *AuthHandler) refreshFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(h.cookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	var data struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data.RefreshToken == "" {
		return "", false
	}
	return data.RefreshToken, true
}
