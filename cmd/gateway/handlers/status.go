package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clipstream/streamgate/cmd/gateway/middleware"
	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/cmd/gateway/service"
	"github.com/clipstream/streamgate/common/bootstrap"
)

// StatusHandler handles status polling and confirmation requests
type StatusHandler struct {
	components *bootstrap.Components
	statuses   *service.StatusService
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(components *bootstrap.Components, statuses *service.StatusService) *StatusHandler {
	return &StatusHandler{
		components: components,
		statuses:   statuses,
	}
}

// GetStatus returns the current status of a video
// GET /api/v1/video-status/:video_id?provider=...
func (h *StatusHandler) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := middleware.RequireUsername(c); err != nil {
		return err
	}

	videoID := c.Param("video_id")
	if videoID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   models.CodeInvalidPayload,
			"message": "video_id is required",
		})
	}

	view, err := h.statuses.GetStatus(ctx, videoID, c.QueryParam("provider"))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, view)
}

// UpdateStatus promotes a video to ready after a client-side manifest
// probe confirmed playback. No other transition is accepted.
// POST /api/v1/video-update-status
func (h *StatusHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	username, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	var req struct {
		VideoID  string `json:"video_id"`
		Provider string `json:"provider"`
		Status   string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   models.CodeInvalidPayload,
			"message": "invalid request body",
		})
	}
	if req.VideoID == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   models.CodeInvalidPayload,
			"message": "video_id is required",
		})
	}

	h.components.Logger.Info("status confirmation requested",
		"video_id", req.VideoID,
		"username", username,
		"status", req.Status,
	)

	view, err := h.statuses.ConfirmReady(ctx, req.VideoID, req.Provider, models.VideoStatus(req.Status))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, view)
}
