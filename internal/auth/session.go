package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNoSession = errors.New("no active session")

type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	User         User   `json:"user"`
}

// Gate resolves the user behind an access token. It returns ErrNoSession
// when the token is empty, expired or unknown.
type Gate interface {
	CurrentUser(ctx context.Context, accessToken string) (*User, error)
}

// SessionStore is the hosted auth service: password and OAuth sign-in,
// sign-up and sign-out on top of Gate.
type SessionStore interface {
	Gate
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	AuthorizeURL(provider, redirectTo, verifier string) string
	ExchangeCode(ctx context.Context, code, verifier string) (*Session, error)
}
