package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-paystack-orderflow/internal/payments"
	"github.com/imrishuroy/go-paystack-orderflow/internal/paystack"
	"github.com/imrishuroy/go-paystack-orderflow/internal/validation"
)

func (h *handler) initializePayment(c *gin.Context) {
	var req validation.InitializePaymentRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}

	in := payments.InitializeInput{
		UserID:      userID(c),
		OrderID:     req.OrderID,
		Email:       req.Email,
		Amount:      req.Amount,
		CallbackURL: req.CallbackURL,
	}
	if ci := req.CustomerInfo; ci != nil {
		in.Customer = &paystack.CustomerInfo{FirstName: ci.FirstName, LastName: ci.LastName, Phone: ci.Phone}
	}

	out, err := h.Payments.Initialize(c.Request.Context(), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) verifyPayment(c *gin.Context) {
	var req validation.VerifyPaymentRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}

	out, err := h.Payments.Verify(c.Request.Context(), userID(c), req.Reference)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusOK
	if !out.Success {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{
		"success": out.Success,
		"status":  out.Status,
		"message": out.Message,
		"data": gin.H{
			"transaction": out.Transaction,
			"order":       out.Order,
		},
	})
}
