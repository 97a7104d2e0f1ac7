package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_UserHandlers(t *testing.T) {
	t.Parallel()

	t.Run("me", func(t *testing.T) {
		router, m := newTestRouter(t)

		signedIn := signInConfirmed(t, router, m, "john@mail.com", "Secret123")
		access := decodeBody[authResponse](t, signedIn).AccessToken

		rec := doJSON(t, router, "GET", "/api/users/me", nil, withBearer(access))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody[userResponse](t, rec)
		assert.Equal(t, "john@mail.com", body.Email)
		assert.Equal(t, "john.doe", body.Username)
	})

	t.Run("me requires auth", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doJSON(t, router, "GET", "/api/users/me", nil)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("public profile hides email", func(t *testing.T) {
		router, m := newTestRouter(t)
		signInConfirmed(t, router, m, "john@mail.com", "Secret123")

		rec := doJSON(t, router, "GET", "/api/users/john.doe", nil)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "john.doe", body["username"])
		assert.NotContains(t, body, "email")
	})

	t.Run("unknown profile", func(t *testing.T) {
		router, _ := newTestRouter(t)

		rec := doJSON(t, router, "GET", "/api/users/nobody", nil)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("update profile", func(t *testing.T) {
		router, m := newTestRouter(t)

		signedIn := signInConfirmed(t, router, m, "john@mail.com", "Secret123")
		access := decodeBody[authResponse](t, signedIn).AccessToken

		rec := doJSON(t, router, "PATCH", "/api/users/me", map[string]string{
			"name":     "John Smith",
			"username": "john.smith",
		}, withBearer(access))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody[userResponse](t, rec)
		assert.Equal(t, "John Smith", body.Name)
		assert.Equal(t, "john.smith", body.Username)
	})

	t.Run("update profile with the same name", func(t *testing.T) {
		router, m := newTestRouter(t)

		signedIn := signInConfirmed(t, router, m, "john@mail.com", "Secret123")
		access := decodeBody[authResponse](t, signedIn).AccessToken

		rec := doJSON(t, router, "PATCH", "/api/users/me", map[string]string{
			"name": "John Doe",
		}, withBearer(access))

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("update email invalidates old refresh tokens", func(t *testing.T) {
		router, m := newTestRouter(t)

		signedIn := signInConfirmed(t, router, m, "john@mail.com", "Secret123")
		access := decodeBody[authResponse](t, signedIn).AccessToken
		cookie := refreshCookie(t, signedIn)

		rec := doJSON(t, router, "PATCH", "/api/users/me/email", map[string]string{
			"email":    "new@mail.com",
			"password": "Secret123",
		}, withBearer(access))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "new@mail.com", decodeBody[userResponse](t, rec).Email)

		rec = doJSON(t, router, "POST", "/api/auth/refresh", nil, withCookie(cookie))
		require.Equal(t, http.StatusUnauthorized, rec.Code, "refresh issued before the email change should be stale")
	})

	t.Run("delete account", func(t *testing.T) {
		router, m := newTestRouter(t)

		signedIn := signInConfirmed(t, router, m, "john@mail.com", "Secret123")
		access := decodeBody[authResponse](t, signedIn).AccessToken

		rec := doJSON(t, router, "DELETE", "/api/users/me", map[string]string{
			"password": "Secret123",
		}, withBearer(access))
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, router, "POST", "/api/auth/sign-in", map[string]string{
			"emailOrUsername": "john@mail.com",
			"password":        "Secret123",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("delete account with wrong password", func(t *testing.T) {
		router, m := newTestRouter(t)

		signedIn := signInConfirmed(t, router, m, "john@mail.com", "Secret123")
		access := decodeBody[authResponse](t, signedIn).AccessToken

		rec := doJSON(t, router, "DELETE", "/api/users/me", map[string]string{
			"password": "Wrong1234",
		}, withBearer(access))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
