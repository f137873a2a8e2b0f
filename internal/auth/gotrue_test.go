package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestGoTrue(t *testing.T, handler http.HandlerFunc) *GoTrueClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGoTrueClient(config.AuthConfig{URL: srv.URL + "/", AnonKey: "anon"})
}

func TestGoTrueSignIn(t *testing.T) {
	userID := uuid.New()

	client := newTestGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "fan@example.com", body["email"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok",
			"expires_in":   3600,
			"user":         map[string]string{"id": userID.String(), "email": "fan@example.com"},
		})
	})

	session, err := client.SignIn(context.Background(), "fan@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok", session.AccessToken)
	assert.Equal(t, 3600, session.ExpiresIn)
	assert.Equal(t, userID, session.User.ID)
}

func TestGoTrueSignInRejected(t *testing.T) {
	client := newTestGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
	})

	_, err := client.SignIn(context.Background(), "fan@example.com", "wrong")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid login credentials", apiErr.Message)
}

func TestGoTrueSignUpPendingConfirmation(t *testing.T) {
	userID := uuid.New()

	client := newTestGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": userID.String(), "email": "new@example.com"})
	})

	session, err := client.SignUp(context.Background(), "new@example.com", "secret")
	require.NoError(t, err)
	assert.Empty(t, session.AccessToken)
	assert.Equal(t, userID, session.User.ID)
	assert.Equal(t, "new@example.com", session.User.Email)
}

func TestGoTrueCurrentUser(t *testing.T) {
	userID := uuid.New()

	client := newTestGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": userID.String(), "email": "fan@example.com"})
	})

	user, err := client.CurrentUser(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)

	_, err = client.CurrentUser(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = client.CurrentUser(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestGoTrueCurrentUserOutage(t *testing.T) {
	client := newTestGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.CurrentUser(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSession)
}

func TestGoTrueSignOut(t *testing.T) {
	called := false
	client := newTestGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/auth/v1/logout", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.SignOut(context.Background(), "tok"))
	assert.True(t, called)
}

func TestGoTruePKCE(t *testing.T) {
	verifier := oauth2.GenerateVerifier()

	client := newTestGoTrue(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pkce", r.URL.Query().Get("grant_type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "the-code", body["auth_code"])
		assert.Equal(t, verifier, body["code_verifier"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok",
			"user":         map[string]string{"id": uuid.NewString(), "email": "fan@example.com"},
		})
	})

	authorize, err := url.Parse(client.AuthorizeURL("github", "http://shop.test/auth/callback", verifier))
	require.NoError(t, err)
	assert.Equal(t, "/auth/v1/authorize", authorize.Path)
	assert.Equal(t, "github", authorize.Query().Get("provider"))
	assert.Equal(t, "http://shop.test/auth/callback", authorize.Query().Get("redirect_to"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), authorize.Query().Get("code_challenge"))
	assert.Equal(t, "s256", authorize.Query().Get("code_challenge_method"))

	session, err := client.ExchangeCode(context.Background(), "the-code", verifier)
	require.NoError(t, err)
	assert.Equal(t, "tok", session.AccessToken)
}
