package drive

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/config"
	"github.com/safar/go-storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g := NewGateway(config.GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://shop.test/api/auth/callback/google",
	},
		option.WithEndpoint(srv.URL+"/drive/v3/"),
		option.WithHTTPClient(srv.Client()),
	)
	g.oauth.Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/o/oauth2/auth",
		TokenURL: srv.URL + "/token",
	}
	return g
}

func validToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
}

func TestAuthCodeURL(t *testing.T) {
	g := NewGateway(config.GoogleConfig{ClientID: "client-id", RedirectURL: "http://shop.test/cb"})

	u, err := url.Parse(g.AuthCodeURL("state-123"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Contains(t, q.Get("scope"), "https://www.googleapis.com/auth/drive.file")
	assert.Contains(t, q.Get("scope"), "userinfo.email")
}

func TestList(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/files"))
		assert.Equal(t, "10", r.URL.Query().Get("pageSize"))
		assert.Equal(t, listFields, r.URL.Query().Get("fields"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[
			{"id":"1","name":"invoice.pdf","mimeType":"application/pdf","webViewLink":"https://drive/1"},
			{"id":"2","name":"logo.png","mimeType":"image/png"}
		]}`))
	})

	files, current, err := g.List(context.Background(), validToken(), 0)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "invoice.pdf", files[0].Name)
	assert.Equal(t, "https://drive/1", files[0].WebViewLink)
	assert.Equal(t, "access", current.AccessToken)
}

func TestListRefreshesExpiredToken(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
			assert.Equal(t, "refresh", r.Form.Get("refresh_token"))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "fresh",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[]}`))
	})

	expired := validToken()
	expired.Expiry = time.Now().Add(-time.Hour)

	files, current, err := g.List(context.Background(), expired, 10)
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, "fresh", current.AccessToken)
	assert.Equal(t, "refresh", current.RefreshToken)
	assert.True(t, current.Expiry.After(time.Now()))
}

func TestUpload(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/files"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"name":"notes.txt"`)
		assert.Contains(t, string(body), "hello drive")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc","name":"notes.txt","mimeType":"text/plain"}`))
	})

	file, _, err := g.Upload(context.Background(), validToken(), Upload{
		Name:     "notes.txt",
		MimeType: "text/plain",
		Content:  strings.NewReader("hello drive"),
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", file.ID)
	assert.Equal(t, "text/plain", file.MimeType)
}

func TestDelete(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		switch {
		case strings.HasSuffix(r.URL.Path, "/files/abc"):
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found"}}`))
		}
	})

	_, err := g.Delete(context.Background(), validToken(), "abc")
	require.NoError(t, err)

	_, err = g.Delete(context.Background(), validToken(), "missing")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestTokenModelConversion(t *testing.T) {
	userID := uuid.New()
	refresh := "refresh"

	token := TokenFromModel(&models.DriveToken{
		UserID:       userID,
		AccessToken:  "access",
		RefreshToken: &refresh,
		ExpiryDate:   1700000000000,
	})
	assert.Equal(t, "access", token.AccessToken)
	assert.Equal(t, "refresh", token.RefreshToken)
	assert.Equal(t, int64(1700000000000), token.Expiry.UnixMilli())

	stored := TokenToModel(userID, token)
	assert.Equal(t, userID, stored.UserID)
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, "refresh", *stored.RefreshToken)
	assert.Equal(t, int64(1700000000000), stored.ExpiryDate)

	bare := TokenToModel(userID, &oauth2.Token{AccessToken: "a"})
	assert.Nil(t, bare.RefreshToken)
	assert.Zero(t, bare.ExpiryDate)

	assert.True(t, TokenFromModel(&models.DriveToken{AccessToken: "a"}).Expiry.IsZero())
}
