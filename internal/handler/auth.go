package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	verifierCookie    = "sb-code-verifier"
	defaultSessionTTL = time.Hour
)

type AuthHandler struct {
	sessions   auth.SessionStore
	db         *sql.DB
	log        logrus.FieldLogger
	cookieName string
	baseURL    string
}

func NewAuthHandler(sessions auth.SessionStore, db *sql.DB, log logrus.FieldLogger, cookieName, baseURL string) *AuthHandler {
	return &AuthHandler{
		sessions:   sessions,
		db:         db,
		log:        log,
		cookieName: cookieName,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type credentialsRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type signUpRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=6"`
}

// SignIn exchanges credentials for a session cookie. A soft-deleted
// profile is reactivated on successful sign-in.
func (h *AuthHandler) SignIn(c echo.Context) error {
	ctx := c.Request().Context()

	var req credentialsRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	session, err := h.sessions.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		if isRejected(err) {
			return respondError(c, http.StatusUnauthorized, "Invalid login credentials")
		}
		h.log.WithError(err).Error("sign in")
		return respondError(c, http.StatusInternalServerError, "Failed to sign in")
	}

	reactivated, err := store.ReactivateProfile(ctx, h.db, session.User.ID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", session.User.ID).Warn("reactivate profile")
	} else if reactivated {
		h.log.WithField("user_id", session.User.ID).Info("profile reactivated")
	}

	h.setSessionCookie(c, session)
	return c.JSON(http.StatusOK, map[string]any{"user": session.User})
}

func (h *AuthHandler) SignUp(c echo.Context) error {
	ctx := c.Request().Context()

	var req signUpRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	session, err := h.sessions.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		if isRejected(err) {
			var apiErr *auth.APIError
			errors.As(err, &apiErr)
			return respondError(c, http.StatusBadRequest, apiErr.Message)
		}
		h.log.WithError(err).Error("sign up")
		return respondError(c, http.StatusInternalServerError, "Failed to sign up")
	}

	if _, err := store.UpsertProfile(ctx, h.db, session.User.ID, session.User.Email); err != nil {
		h.log.WithError(err).WithField("user_id", session.User.ID).Warn("create profile")
	}

	if session.AccessToken == "" {
		return c.JSON(http.StatusOK, map[string]any{
			"user":                  session.User,
			"confirmation_required": true,
		})
	}

	h.setSessionCookie(c, session)
	return c.JSON(http.StatusCreated, map[string]any{"user": session.User})
}

func (h *AuthHandler) SignOut(c echo.Context) error {
	token := auth.AccessTokenFrom(c)
	if token == "" {
		token = auth.TokenFromRequest(c, h.cookieName)
	}

	if token != "" {
		if err := h.sessions.SignOut(c.Request().Context(), token); err != nil {
			h.log.WithError(err).Warn("sign out")
		}
	}

	h.clearCookie(c, h.cookieName)
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// StartOAuth sends the browser to the auth service's provider flow. The
// PKCE verifier rides along in a short-lived cookie.
func (h *AuthHandler) StartOAuth(c echo.Context) error {
	verifier := oauth2.GenerateVerifier()

	c.SetCookie(&http.Cookie{
		Name:     verifierCookie,
		Value:    verifier,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.secure(),
		SameSite: http.SameSiteLaxMode,
	})

	redirectTo := h.baseURL + "/auth/callback"
	if next := safeNext(c.QueryParam("next")); next != "" {
		redirectTo += "?next=" + url.QueryEscape(next)
	}

	return c.Redirect(http.StatusFound, h.sessions.AuthorizeURL(c.Param("provider"), redirectTo, verifier))
}

// OAuthCallback finishes a provider sign-in and makes sure a profile row
// exists for the user.
func (h *AuthHandler) OAuthCallback(c echo.Context) error {
	ctx := c.Request().Context()

	code := c.QueryParam("code")
	if code == "" {
		return c.Redirect(http.StatusFound, "/login")
	}

	verifier, err := c.Cookie(verifierCookie)
	if err != nil || verifier.Value == "" {
		return c.Redirect(http.StatusFound, "/login?error=auth-failed")
	}

	session, err := h.sessions.ExchangeCode(ctx, code, verifier.Value)
	if err != nil {
		h.log.WithError(err).Error("exchange auth code")
		return c.Redirect(http.StatusFound, "/login?error=auth-failed")
	}

	if _, err := store.UpsertProfile(ctx, h.db, session.User.ID, session.User.Email); err != nil {
		h.log.WithError(err).WithField("user_id", session.User.ID).Error("upsert profile")
	}

	h.clearCookie(c, verifierCookie)
	h.setSessionCookie(c, session)

	if next := safeNext(c.QueryParam("next")); next != "" {
		return c.Redirect(http.StatusFound, next)
	}
	return c.Redirect(http.StatusFound, "/")
}

func (h *AuthHandler) Status(c echo.Context) error {
	user, ok := auth.UserFrom(c)
	if !ok {
		return c.JSON(http.StatusOK, map[string]any{
			"authenticated": false,
			"message":       "No active session found",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          user,
	})
}

func (h *AuthHandler) setSessionCookie(c echo.Context, session *auth.Session) {
	ttl := time.Duration(session.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	c.SetCookie(&http.Cookie{
		Name:     h.cookieName,
		Value:    session.AccessToken,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) secure() bool {
	return secureURL(h.baseURL)
}

// secureURL reports whether cookies for the site need the Secure flag.
func secureURL(baseURL string) bool {
	return strings.HasPrefix(baseURL, "https://")
}

// isRejected reports whether the auth service refused the request itself,
// as opposed to being unreachable.
func isRejected(err error) bool {
	var apiErr *auth.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

// safeNext only allows same-site relative paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}
