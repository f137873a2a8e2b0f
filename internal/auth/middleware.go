package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	userKey  = "user"
	tokenKey = "access_token"
)

// TokenFromRequest reads the access token from the session cookie, falling
// back to an Authorization bearer header.
func TokenFromRequest(c echo.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	return ""
}

// LoadSession resolves the current user once per request. Requests without
// a valid session continue anonymously.
func LoadSession(gate Gate, cookieName string, log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := TokenFromRequest(c, cookieName)
			if token == "" {
				return next(c)
			}

			user, err := gate.CurrentUser(c.Request().Context(), token)
			if err != nil {
				if !errors.Is(err, ErrNoSession) {
					log.WithError(err).Warn("resolve session")
				}
				return next(c)
			}

			c.Set(userKey, user)
			c.Set(tokenKey, token)
			return next(c)
		}
	}
}

func UserFrom(c echo.Context) (*User, bool) {
	user, ok := c.Get(userKey).(*User)
	return user, ok && user != nil
}

func AccessTokenFrom(c echo.Context) string {
	token, _ := c.Get(tokenKey).(string)
	return token
}

// RequireUser rejects anonymous requests with 401.
func RequireUser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := UserFrom(c); !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
			}
			return next(c)
		}
	}
}
