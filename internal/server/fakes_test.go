package server

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/drive"
	"golang.org/x/oauth2"
)

type fakeSessions struct {
	users    map[string]*auth.User
	sessions map[string]*auth.Session
	signOuts []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		users:    map[string]*auth.User{},
		sessions: map[string]*auth.Session{},
	}
}

// login registers a user reachable through both the token and password
// sign-in.
func (f *fakeSessions) login(email, password string) (*auth.User, string) {
	user := &auth.User{ID: uuid.New(), Email: email}
	token := "token-" + user.ID.String()
	f.users[token] = user
	f.sessions[email+":"+password] = &auth.Session{AccessToken: token, ExpiresIn: 3600, User: *user}
	return user, token
}

func (f *fakeSessions) CurrentUser(_ context.Context, token string) (*auth.User, error) {
	if user, ok := f.users[token]; ok {
		return user, nil
	}
	return nil, auth.ErrNoSession
}

func (f *fakeSessions) SignIn(_ context.Context, email, password string) (*auth.Session, error) {
	if session, ok := f.sessions[email+":"+password]; ok {
		return session, nil
	}
	return nil, &auth.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid login credentials"}
}

func (f *fakeSessions) SignUp(_ context.Context, email, _ string) (*auth.Session, error) {
	return nil, &auth.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "User already registered"}
}

func (f *fakeSessions) SignOut(_ context.Context, token string) error {
	f.signOuts = append(f.signOuts, token)
	return nil
}

func (f *fakeSessions) AuthorizeURL(provider, redirectTo, verifier string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
	return "https://auth.test/authorize?" + q.Encode()
}

func (f *fakeSessions) ExchangeCode(context.Context, string, string) (*auth.Session, error) {
	return nil, &auth.APIError{StatusCode: http.StatusBadRequest, Message: "invalid flow state"}
}

type fakeFiles struct {
	files   []drive.File
	deleted []string
}

func (f *fakeFiles) AuthCodeURL(state string) string {
	return "https://accounts.test/auth?state=" + state
}

func (f *fakeFiles) Exchange(context.Context, string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "drive-access", RefreshToken: "drive-refresh"}, nil
}

func (f *fakeFiles) List(_ context.Context, token *oauth2.Token, _ int) ([]drive.File, *oauth2.Token, error) {
	return f.files, token, nil
}

func (f *fakeFiles) Upload(_ context.Context, token *oauth2.Token, upload drive.Upload) (*drive.File, *oauth2.Token, error) {
	if _, err := io.ReadAll(upload.Content); err != nil {
		return nil, nil, err
	}
	file := drive.File{ID: "new", Name: upload.Name, MimeType: upload.MimeType}
	f.files = append(f.files, file)
	return &file, token, nil
}

func (f *fakeFiles) Delete(_ context.Context, token *oauth2.Token, fileID string) (*oauth2.Token, error) {
	f.deleted = append(f.deleted, fileID)
	return token, nil
}
