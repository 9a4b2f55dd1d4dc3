package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/clipstream/streamgate/cmd/gateway/container"
	"github.com/clipstream/streamgate/cmd/gateway/handlers"
	"github.com/clipstream/streamgate/cmd/gateway/middleware"
	commonmw "github.com/clipstream/streamgate/common/middleware"
)

// RegisterStatusRoutes registers status polling and confirmation routes.
// Polling is rate limited per user: every viewer of a pending video
// polls on an interval, and the limiter keeps a popular upload from
// turning into a thundering herd.
func RegisterStatusRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewStatusHandler(c.Components, c.StatusService)

	api := e.Group("/api/v1")
	if c.Components.Config.RateLimit.Enabled {
		api.Use(commonmw.UserRateLimitMiddleware(c.Limiter, c.Components.Config.RateLimit.StatusPerMinute, middleware.GetUsername))
	}

	{
		api.GET("/video-status/:video_id", h.GetStatus)    // GET /api/v1/video-status/{video_id}
		api.POST("/video-update-status", h.UpdateStatus)   // POST /api/v1/video-update-status
	}
}
