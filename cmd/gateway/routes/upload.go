package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/clipstream/streamgate/cmd/gateway/container"
	"github.com/clipstream/streamgate/cmd/gateway/handlers"
)

// RegisterUploadRoutes registers the multipart video upload route
func RegisterUploadRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewUploadHandler(c.Components, c.UploadService)

	videos := e.Group("/api/v1/videos")
	{
		videos.POST("", h.Upload) // POST /api/v1/videos
	}
}
