package handler

import (
	"errors"
	"io"
	"net/http"

	"marketplace-ledger/internal/adapter/http/dto"
	"marketplace-ledger/internal/core/ports"
	"marketplace-ledger/pkg/apperror"
	"marketplace-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HeaderProcessorSignature carries the processor's payload signature.
const HeaderProcessorSignature = "Stripe-Signature"

// WebhookHandler receives processor notifications.
type WebhookHandler struct {
	intake ports.EventIntakeService
	log    zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(intake ports.EventIntakeService, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{intake: intake, log: log}
}

// Receive handles POST /api/v1/webhooks/processor. The body is read raw
// because the signature covers the exact bytes sent.
func (h *WebhookHandler) Receive(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatus(http.StatusRequestEntityTooLarge)
			return
		}
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}

	result, err := h.intake.Receive(c.Request.Context(), payload, c.GetHeader(HeaderProcessorSignature))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.IntakeResponse{
		Received:  true,
		EventID:   result.EventID,
		Outcome:   string(result.Outcome),
		Duplicate: result.Duplicate,
	})
}
