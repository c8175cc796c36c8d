package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-paystack-orderflow/internal/payments"
)

var kindStatus = map[payments.Kind]int{
	payments.KindValidation:   http.StatusBadRequest,
	payments.KindUnauthorized: http.StatusUnauthorized,
	payments.KindForbidden:    http.StatusForbidden,
	payments.KindGateway:      http.StatusBadRequest,
	payments.KindNotFound:     http.StatusNotFound,
	payments.KindConflict:     http.StatusConflict,
	payments.KindInternal:     http.StatusInternalServerError,
}

// writeError maps a payment flow error onto an HTTP response. Internal
// details are logged, not returned.
func (h *handler) writeError(c *gin.Context, err error) {
	kind := payments.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	msg := "internal error"
	var pe *payments.Error
	if errors.As(err, &pe) && kind != payments.KindInternal {
		msg = pe.Message
	}
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": string(kind), "message": msg})
}
