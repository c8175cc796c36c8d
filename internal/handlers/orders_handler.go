package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-paystack-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-paystack-orderflow/internal/orders"
	"github.com/imrishuroy/go-paystack-orderflow/internal/paystack"
	"github.com/imrishuroy/go-paystack-orderflow/internal/validation"
)

// createOrder handles checkout: it stores a pending order whose total is a
// snapshot of the submitted items. Replays of the same Idempotency-Key get
// the original response.
func (h *handler) createOrder(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	clientKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if clientKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_idempotency_key"})
		return
	}
	idempKey := idempotency.CheckoutKey(uid, clientKey)

	items, amount, err := toLineItems(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "message": err.Error()})
		return
	}

	orderID := uuid.NewString()
	created, err := h.Idempotency.CreateIfNotExists(ctx, idempKey, orderID)
	if err != nil {
		h.Logger.ErrorContext(ctx, "idempotency create failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
		return
	}
	if !created {
		rec, getErr := h.Idempotency.Get(ctx, idempKey)
		if getErr != nil || rec == nil {
			h.Logger.ErrorContext(ctx, "idempotency lookup failed", "error", getErr)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
			return
		}
		switch rec.Status {
		case idempotency.StatusDone:
			if rec.ResponseBody != "" && json.Valid([]byte(rec.ResponseBody)) {
				c.Data(rec.ResponseStatus, "application/json", []byte(rec.ResponseBody))
				return
			}
			c.JSON(http.StatusOK, gin.H{"order_id": rec.OrderID})
			return
		case idempotency.StatusInProgress:
			c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "order_id": rec.OrderID})
			return
		case idempotency.StatusFailed:
			if err := h.Idempotency.Reclaim(ctx, idempKey); err != nil {
				if errors.Is(err, idempotency.ErrConditionFailed) {
					c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "order_id": rec.OrderID})
					return
				}
				h.Logger.ErrorContext(ctx, "idempotency reclaim failed", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
				return
			}
			// retry under the order id reserved by the failed attempt
			orderID = rec.OrderID
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
			return
		}
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = h.DefaultCurrency
	}
	now := time.Now().UTC()
	order := orders.Order{
		OrderID:         orderID,
		UserID:          uid,
		Email:           req.Email,
		Items:           items,
		Amount:          amount,
		Currency:        currency,
		ShippingAddress: orders.Address(req.ShippingAddress),
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   orders.PaymentPending,
		DeliveryStatus:  orders.DeliveryPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.Orders.Create(ctx, order); err != nil && !errors.Is(err, orders.ErrAlreadyExists) {
		h.Logger.ErrorContext(ctx, "order create failed", "order_id", orderID, "error", err)
		// mark failed so the client can retry with the same key
		if merr := h.Idempotency.MarkFailed(ctx, idempKey, fmt.Sprintf("order_create_failed: %v", err)); merr != nil {
			h.Logger.ErrorContext(ctx, "idempotency mark failed failed, key stays in progress until expiry",
				"order_id", orderID, "error", merr)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order_create_failed"})
		return
	}

	resp := gin.H{
		"order_id":       orderID,
		"payment_status": orders.PaymentPending,
		"amount":         paystack.FromKobo(amount).StringFixed(2),
		"currency":       currency,
	}
	responseBody, _ := json.Marshal(resp)
	if err := h.Idempotency.MarkDone(ctx, idempKey, string(responseBody), http.StatusCreated); err != nil {
		h.Logger.WarnContext(ctx, "idempotency mark done failed", "order_id", orderID, "error", err)
	}

	h.Logger.InfoContext(ctx, "order created", "order_id", orderID, "amount", amount, "currency", currency)
	c.Header("Location", fmt.Sprintf("/orders/%s", orderID))
	c.JSON(http.StatusCreated, resp)
}

// getOrder returns an order owned by the caller.
func (h *handler) getOrder(c *gin.Context) {
	ctx := c.Request.Context()

	order, err := h.Orders.Get(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "order not found"})
			return
		}
		h.Logger.ErrorContext(ctx, "order lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "internal error"})
		return
	}
	if order.UserID != userID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "order belongs to another user"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// toLineItems converts request prices to minor units and returns the
// snapshot total.
func toLineItems(req validation.CreateOrderRequest) ([]orders.LineItem, int64, error) {
	items := make([]orders.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		price, err := paystack.ToKobo(it.UnitPrice)
		if err != nil {
			return nil, 0, fmt.Errorf("item %s: %w", it.ProductID, err)
		}
		items = append(items, orders.LineItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: price,
		})
	}
	claimed, err := paystack.ToKobo(req.Amount)
	if err != nil {
		return nil, 0, err
	}
	total := orders.Total(items)
	if total != claimed {
		return nil, 0, fmt.Errorf("items total %d does not match amount %d", total, claimed)
	}
	return items, total, nil
}
