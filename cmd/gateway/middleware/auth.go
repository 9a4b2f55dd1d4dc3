package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrMissingUsername is returned by RequireUsername after the 401 has
// already been written, so handlers stop instead of continuing with an
// empty username.
var ErrMissingUsername = errors.New("authentication required")

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// UsernameKey is the context key for storing the authenticated username
	UsernameKey ContextKey = "username"
)

// ExtractUsername is a middleware that extracts the X-User-ID header
// and stores it in the request context.
//
// The webhook endpoint stays outside this: providers cannot send user
// headers, their deliveries are authenticated by signature instead.
//
// Usage:
//
//	e := echo.New()
//	e.Use(middleware.ExtractUsername())
//
// Accessing in handlers:
//
//	username := middleware.GetUsername(c)
func ExtractUsername() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			username := c.Request().Header.Get("X-User-ID")

			if username != "" {
				c.Set(string(UsernameKey), username)
			}

			return next(c)
		}
	}
}

// GetUsername retrieves the username from the request context
// Returns empty string if not set
func GetUsername(c echo.Context) string {
	username := c.Get(string(UsernameKey))
	if username == nil {
		return ""
	}
	return username.(string)
}

// RequireUsername ensures a username exists in context. On a missing
// username it writes the 401 response and returns ErrMissingUsername;
// the error is always non-nil so callers can simply return it. Echo's
// error handler skips responses that are already committed.
func RequireUsername(c echo.Context) (string, error) {
	username := GetUsername(c)
	if username == "" {
		if err := c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error": "authentication required (X-User-ID header missing)",
		}); err != nil {
			return "", err
		}
		return "", ErrMissingUsername
	}
	return username, nil
}
