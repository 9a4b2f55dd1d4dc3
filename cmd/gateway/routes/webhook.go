package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/clipstream/streamgate/cmd/gateway/container"
	"github.com/clipstream/streamgate/cmd/gateway/handlers"
	commonmw "github.com/clipstream/streamgate/common/middleware"
)

// RegisterWebhookRoutes registers the public webhook ingestion route.
// No user authentication here: providers authenticate by signature, and
// the per-provider rate limiter bounds abuse of the open endpoint.
func RegisterWebhookRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewWebhookHandler(c.Components, c.WebhookService)

	webhook := e.Group("/webhook")
	if c.Components.Config.RateLimit.Enabled {
		webhook.Use(commonmw.WebhookRateLimitMiddleware(c.Limiter, c.Components.Config.RateLimit.WebhookPerMinute))
	}

	webhook.POST("/:provider", h.Receive)
}
