package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/authgate/internal/handlers/middleware"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type authenticator interface {
	authService

	// Resolve user by access token, used by the auth middleware
	Auth(ctx context.Context, accessToken string) (models.User, error)
}

type RouterConfig struct {
	AuthService authenticator
	UserService userService
	Logger      logger.Logger

	// Name of the refresh token cookie, DefaultRefreshCookieName if empty
	RefreshCookieName string
}

func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuth(cfg.AuthService, cfg.RefreshCookieName)
	userHandler := NewUser(cfg.UserService)

	authMiddleware := middleware.AuthMiddleware(cfg.AuthService)
	withAuth := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}

	apiauth := http.NewServeMux()
	apiauth.HandleFunc("POST /sign-up", authHandler.signUp)
	apiauth.HandleFunc("POST /sign-in", authHandler.signIn)
	apiauth.HandleFunc("POST /refresh", authHandler.refresh)
	apiauth.HandleFunc("POST /logout", authHandler.logout)
	apiauth.HandleFunc("POST /confirm-email", authHandler.confirmEmail)
	apiauth.HandleFunc("POST /forgot-password", authHandler.forgotPassword)
	apiauth.HandleFunc("PATCH /reset-password", authHandler.resetPassword)
	apiauth.Handle("PATCH /update-password", withAuth(authHandler.updatePassword))

	apiusers := http.NewServeMux()
	apiusers.Handle("GET /me", withAuth(userHandler.me))
	apiusers.Handle("PATCH /me", withAuth(userHandler.update))
	apiusers.Handle("PATCH /me/email", withAuth(userHandler.updateEmail))
	apiusers.Handle("DELETE /me", withAuth(userHandler.remove))
	apiusers.HandleFunc("GET /{username}", userHandler.getByUsername)

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.Handle("/api/users/", http.StripPrefix("/api/users", apiusers))

	return chain(root,
		middleware.LoggerMiddleware(cfg.Logger),
	)
}
