package handlers

import (
	"io"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/clipstream/streamgate/cmd/gateway/middleware"
	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/cmd/gateway/service"
	"github.com/clipstream/streamgate/common/bootstrap"
)

// UploadHandler handles video upload requests
type UploadHandler struct {
	components *bootstrap.Components
	uploads    *service.UploadService
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(components *bootstrap.Components, uploads *service.UploadService) *UploadHandler {
	return &UploadHandler{
		components: components,
		uploads:    uploads,
	}
}

// Upload accepts a multipart video upload and dispatches it to the
// active provider
// POST /api/v1/videos
func (h *UploadHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()

	username, err := middleware.RequireUsername(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   models.CodeInvalidFile,
			"message": "multipart field \"file\" is required",
		})
	}

	meta := models.UploadMeta{
		Title:   c.FormValue("title"),
		Context: models.UploadContext(c.FormValue("context")),
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   models.CodeInvalidFile,
			"message": "unable to open uploaded file",
		})
	}
	defer src.Close()

	// Spool to disk so the provider upload can re-read after sniffing
	// and so a large file never sits fully in memory.
	spool, size, err := h.spool(src)
	if err != nil {
		h.components.Logger.Error("upload spool failed", "filename", fileHeader.Filename, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error":   "internal",
			"message": "failed to stage uploaded file",
		})
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	h.components.Logger.Info("upload received",
		"username", username,
		"filename", fileHeader.Filename,
		"size_bytes", size,
	)

	result, err := h.uploads.Upload(ctx, spool, size, fileHeader.Filename, meta)
	if err != nil {
		h.components.Logger.Warn("upload rejected", "filename", fileHeader.Filename, "error", err)
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// spool copies the multipart part to a temp file and rewinds it
func (h *UploadHandler) spool(src io.Reader) (*os.File, int64, error) {
	tmp, err := os.CreateTemp("", "streamgate-upload-*")
	if err != nil {
		return nil, 0, err
	}

	size, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, 0, err
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, 0, err
	}

	return tmp, size, nil
}
