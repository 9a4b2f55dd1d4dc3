package middleware

import (
	"net/http"
	"strconv"

	"github.com/clipstream/streamgate/common/ratelimit"
	"github.com/labstack/echo/v4"
)

// WebhookRateLimitMiddleware limits the public webhook endpoint per provider.
// The endpoint has no auth token, so the limiter is the only throttle
// between the internet and signature verification.
func WebhookRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			provider := c.Param("provider")

			result, err := rateLimiter.CheckWebhookLimit(c.Request().Context(), provider, limit)
			if err != nil {
				// Fail open for availability
				return next(c)
			}

			if !result.Allowed {
				return tooManyRequests(c, result)
			}

			return next(c)
		}
	}
}

// UserRateLimitMiddleware limits authenticated endpoints per user.
// usernameFn extracts the identity the limit is keyed on.
func UserRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, limit int64, usernameFn func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			username := usernameFn(c)
			if username == "" {
				return next(c)
			}

			result, err := rateLimiter.CheckUserLimit(c.Request().Context(), username, limit, 60)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				return tooManyRequests(c, result)
			}

			return next(c)
		}
	}
}

func tooManyRequests(c echo.Context, result *ratelimit.RateLimitResult) error {
	c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
	return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
		"error":       "rate_limit_exceeded",
		"retry_after": result.RetryAfterSeconds,
	})
}
