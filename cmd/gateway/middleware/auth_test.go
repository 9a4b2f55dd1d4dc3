package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWithAuth(t *testing.T, userID string, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := ExtractUsername()(handler)(c)
	return rec, err
}

func TestRequireUsername_MissingHeaderStopsHandler(t *testing.T) {
	reachedBody := false

	rec, err := runWithAuth(t, "", func(c echo.Context) error {
		if _, err := RequireUsername(c); err != nil {
			return err
		}
		reachedBody = true
		return c.NoContent(http.StatusOK)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingUsername))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, reachedBody, "handler body must not run without a username")
}

func TestRequireUsername_PassesUsernameThrough(t *testing.T) {
	var got string

	rec, err := runWithAuth(t, "alice", func(c echo.Context) error {
		username, err := RequireUsername(c)
		if err != nil {
			return err
		}
		got = username
		return c.NoContent(http.StatusOK)
	})

	require.NoError(t, err)
	assert.Equal(t, "alice", got)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetUsername_EmptyWhenUnset(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Equal(t, "", GetUsername(c))
}
