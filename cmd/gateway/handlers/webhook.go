package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clipstream/streamgate/cmd/gateway/models"
	"github.com/clipstream/streamgate/cmd/gateway/service"
	"github.com/clipstream/streamgate/common/bootstrap"
)

// maxWebhookBody caps webhook payload reads. Provider notifications are
// small JSON documents; anything past this is not one.
const maxWebhookBody = 1 << 20

// WebhookHandler handles provider push notifications
type WebhookHandler struct {
	components *bootstrap.Components
	webhooks   *service.WebhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(components *bootstrap.Components, webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		components: components,
		webhooks:   webhooks,
	}
}

// Receive ingests one webhook delivery. The route is public; the
// signature check inside the service is the only authentication. A
// not-yet-ready notification is a successful no-op, not an error.
// POST /webhook/:provider
func (h *WebhookHandler) Receive(c echo.Context) error {
	ctx := c.Request().Context()
	provider := c.Param("provider")

	rawBody, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   models.CodeInvalidPayload,
			"message": "unable to read request body",
		})
	}

	signature := c.Request().Header.Get("Webhook-Signature")

	result, err := h.webhooks.Ingest(ctx, provider, rawBody, signature)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, result)
}
