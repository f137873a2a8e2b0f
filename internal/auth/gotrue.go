package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/safar/go-storefront/internal/config"
	"golang.org/x/oauth2"
)

// APIError is a non-2xx answer from the auth service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth service returned %d: %s", e.StatusCode, e.Message)
}

// GoTrueClient talks to a GoTrue compatible auth REST API.
type GoTrueClient struct {
	httpClient *http.Client
	baseURL    string
	anonKey    string
}

func NewGoTrueClient(cfg config.AuthConfig) *GoTrueClient {
	return &GoTrueClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		anonKey: cfg.AnonKey,
	}
}

func (c *GoTrueClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", map[string]string{
		"email":    email,
		"password": password,
	}, &session)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return &session, nil
}

// SignUp registers a user. When the service requires email confirmation
// the returned session has no access token, only the user.
func (c *GoTrueClient) SignUp(ctx context.Context, email, password string) (*Session, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodPost, "/signup", "", map[string]string{
		"email":    email,
		"password": password,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode sign up: %w", err)
	}
	if session.AccessToken == "" {
		if err := json.Unmarshal(raw, &session.User); err != nil {
			return nil, fmt.Errorf("decode sign up user: %w", err)
		}
	}

	return &session, nil
}

func (c *GoTrueClient) SignOut(ctx context.Context, accessToken string) error {
	if err := c.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// AuthorizeURL is where the browser starts an OAuth sign-in. The verifier
// must be kept by the caller and handed to ExchangeCode on return.
func (c *GoTrueClient) AuthorizeURL(provider, redirectTo, verifier string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
	q.Set("code_challenge_method", "s256")
	return c.baseURL + "/authorize?" + q.Encode()
}

func (c *GoTrueClient) ExchangeCode(ctx context.Context, code, verifier string) (*Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/token?grant_type=pkce", "", map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	}, &session)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return &session, nil
}

func (c *GoTrueClient) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, ErrNoSession
	}

	var user User
	err := c.do(ctx, http.MethodGet, "/user", accessToken, nil, &user)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) &&
			(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (c *GoTrueClient) do(ctx context.Context, method, path, accessToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("json marshal: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)

	var body struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(raw, &body)

	msg := body.Msg
	if msg == "" {
		msg = body.ErrorDescription
	}
	if msg == "" {
		msg = body.Message
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}

	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
