package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-paystack-orderflow/internal/payments"
	"github.com/imrishuroy/go-paystack-orderflow/internal/paystack"
)

const maxWebhookBytes = 1 << 20

// webhook reads the raw body so the signature is checked over exactly the
// bytes the gateway signed.
func (h *handler) webhook(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		h.Logger.WarnContext(ctx, "webhook body unreadable", "error", err)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body_too_large"})
		return
	}

	err = h.Payments.ReceiveWebhook(ctx, body, c.GetHeader(paystack.SignatureHeader))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, payments.ErrMalformedEvent):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "malformed_event"})
	case payments.KindOf(err) == payments.KindUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
	default:
		h.Logger.ErrorContext(ctx, "webhook failed", "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
