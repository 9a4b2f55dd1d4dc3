package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clipstream/streamgate/cmd/gateway/models"
)

// errorResponse maps a coded error onto an HTTP status. Stable codes
// travel in the body; provider internals never leak past the message.
func errorResponse(c echo.Context, err error) error {
	code := models.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case models.CodeInvalidFile, models.CodeInvalidFormat, models.CodeInvalidMIMEType,
		models.CodeInvalidPayload, models.CodePolicyRejected, models.CodeInvalidTransition:
		status = http.StatusBadRequest
	case models.CodeFileTooLarge:
		status = http.StatusRequestEntityTooLarge
	case models.CodeInvalidSignature, models.CodeExpiredSignature:
		status = http.StatusUnauthorized
	case models.CodeUnknownProvider, models.CodeVideoNotFound:
		status = http.StatusNotFound
	case models.CodeProviderUnavailable:
		status = http.StatusBadGateway
	}

	return c.JSON(status, map[string]interface{}{
		"error":   code,
		"message": models.MessageOf(err),
	})
}
