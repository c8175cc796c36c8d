package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-paystack-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-paystack-orderflow/internal/orders"
	"github.com/imrishuroy/go-paystack-orderflow/internal/payments"
	"github.com/imrishuroy/go-paystack-orderflow/internal/validation"
)

// IdempotencyStore guards checkout against replays of the same
// Idempotency-Key.
type IdempotencyStore interface {
	CreateIfNotExists(ctx context.Context, key, orderID string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
	Reclaim(ctx context.Context, key string) error
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// PaymentService is the payment flow behind the payment and webhook routes.
type PaymentService interface {
	Initialize(ctx context.Context, in payments.InitializeInput) (*payments.InitializeOutput, error)
	Verify(ctx context.Context, userID, reference string) (*payments.VerifyOutput, error)
	ReceiveWebhook(ctx context.Context, body []byte, signature string) error
}

// Deps groups dependencies for the HTTP handlers.
type Deps struct {
	Orders          orders.Repository
	Idempotency     IdempotencyStore
	Payments        PaymentService
	Logger          *slog.Logger
	DefaultCurrency string
}

type handler struct {
	Deps
	v *validatorv10.Validate
}

// RegisterRoutes registers the checkout, payment and webhook routes.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.DefaultCurrency == "" {
		deps.DefaultCurrency = "NGN"
	}
	h := &handler{Deps: deps, v: validation.New()}

	r.Use(RequestLogger(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// the gateway authenticates with a signature, not a session
	r.POST("/webhook", h.webhook)

	authed := r.Group("/", RequireSession())
	authed.POST("/orders", h.createOrder)
	authed.GET("/orders/:id", h.getOrder)
	authed.POST("/payments/initialize", h.initializePayment)
	authed.POST("/payments/verify", h.verifyPayment)
}
