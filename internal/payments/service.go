package payments

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/imrishuroy/go-paystack-orderflow/internal/orders"
	"github.com/imrishuroy/go-paystack-orderflow/internal/paystack"
	"github.com/shopspring/decimal"
)

// OrderStore is the slice of the order store the payment flow needs.
type OrderStore interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	FindByReference(ctx context.Context, reference string) (*orders.Order, error)
	AttachReference(ctx context.Context, orderID, reference string) error
	UpdatePaymentStatus(ctx context.Context, orderID string, expected, next orders.PaymentStatus, reference string, at time.Time) error
}

// Gateway is the payment provider API.
type Gateway interface {
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
}

// Notifier is told about orders that just became paid.
type Notifier interface {
	OrderPaid(ctx context.Context, order orders.Order) error
}

// Metrics counts reconciliation outcomes.
type Metrics interface {
	Count(ctx context.Context, name string, dims map[string]string) error
}

// Metric names.
const (
	MetricReconcilePaid           = "ReconcilePaid"
	MetricReconcileDuplicate      = "ReconcileDuplicate"
	MetricReconcileRejected       = "ReconcileRejected"
	MetricWebhookIgnored          = "WebhookIgnored"
	MetricWebhookSignatureInvalid = "WebhookSignatureInvalid"
)

// Config holds the Service collaborators.
type Config struct {
	Orders          OrderStore
	Gateway         Gateway
	Notifier        Notifier
	Metrics         Metrics
	Logger          *slog.Logger
	CallbackURL     string
	DefaultCurrency string
	WebhookSecret   string
	// NewReference and Now are replaceable in tests.
	NewReference func() string
	Now          func() time.Time
}

// Service runs payment initialization, verification and webhook
// reconciliation against the order store.
type Service struct {
	orders      OrderStore
	gateway     Gateway
	notifier    Notifier
	metrics     Metrics
	logger      *slog.Logger
	callbackURL string
	currency    string
	secret      string
	newRef      func() string
	now         func() time.Time
}

func NewService(cfg Config) *Service {
	s := &Service{
		orders:      cfg.Orders,
		gateway:     cfg.Gateway,
		notifier:    cfg.Notifier,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		callbackURL: cfg.CallbackURL,
		currency:    strings.ToUpper(cfg.DefaultCurrency),
		secret:      cfg.WebhookSecret,
		newRef:      cfg.NewReference,
		now:         cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.currency == "" {
		s.currency = "NGN"
	}
	if s.newRef == nil {
		s.newRef = paystack.GenerateReference
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// InitializeInput is an authenticated request to pay for an order.
type InitializeInput struct {
	UserID      string
	OrderID     string
	Email       string
	Amount      decimal.Decimal
	Customer    *paystack.CustomerInfo
	CallbackURL string
}

// InitializeOutput tells the caller where to send the customer.
type InitializeOutput struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Initialize opens a gateway transaction for a pending order and links the
// generated reference to it. The order stays pending; only reconciliation
// marks it paid.
func (s *Service) Initialize(ctx context.Context, in InitializeInput) (*InitializeOutput, error) {
	if in.UserID == "" {
		return nil, newError(KindUnauthorized, "authentication required", nil)
	}
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.OrderID) == "" {
		return nil, newError(KindValidation, "email, amount and orderId are required", nil)
	}
	if !in.Amount.IsPositive() {
		return nil, newError(KindValidation, "amount must be greater than zero", nil)
	}
	amount, err := paystack.ToKobo(in.Amount)
	if err != nil {
		return nil, newError(KindValidation, "invalid amount", err)
	}
	callback, err := s.resolveCallback(in.CallbackURL)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.Get(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return nil, newError(KindNotFound, "order not found", err)
		}
		return nil, newError(KindInternal, "load order", err)
	}
	if order.UserID != in.UserID {
		return nil, newError(KindForbidden, "order belongs to another user", nil)
	}
	if order.PaymentStatus != orders.PaymentPending {
		return nil, newError(KindConflict, "order is not awaiting payment", nil)
	}
	if order.Amount != amount {
		return nil, newError(KindValidation, "amount does not match order total", nil)
	}

	currency := order.Currency
	if currency == "" {
		currency = s.currency
	}
	res, err := s.gateway.InitializeTransaction(ctx, paystack.InitializeRequest{
		Email:       in.Email,
		Amount:      amount,
		Currency:    currency,
		Reference:   s.newRef(),
		CallbackURL: callback,
		Metadata: paystack.Metadata{
			OrderID:  order.OrderID,
			UserID:   in.UserID,
			Customer: in.Customer,
		},
	})
	if err != nil {
		return nil, gatewayError(err)
	}

	if err := s.orders.AttachReference(ctx, order.OrderID, res.Reference); err != nil {
		if errors.Is(err, orders.ErrStatusMismatch) {
			return nil, newError(KindConflict, "order is not awaiting payment", err)
		}
		return nil, newError(KindInternal, "link payment reference", err)
	}

	s.logger.InfoContext(ctx, "payment initialized",
		"order_id", order.OrderID, "reference", res.Reference, "amount", amount, "currency", currency)

	return &InitializeOutput{
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
		Reference:        res.Reference,
	}, nil
}

// resolveCallback accepts a caller-supplied callback only on the same origin
// as the configured one.
func (s *Service) resolveCallback(requested string) (string, error) {
	if requested == "" {
		return s.callbackURL, nil
	}
	want, err := url.Parse(s.callbackURL)
	if err != nil || s.callbackURL == "" {
		return "", newError(KindValidation, "callbackUrl not allowed", err)
	}
	got, err := url.Parse(requested)
	if err != nil || !strings.EqualFold(got.Scheme, want.Scheme) || !strings.EqualFold(got.Host, want.Host) {
		return "", newError(KindValidation, "callbackUrl must stay on "+want.Scheme+"://"+want.Host, err)
	}
	return requested, nil
}

// VerifyOutput is the result of a client-triggered verification.
type VerifyOutput struct {
	Success     bool                  `json:"success"`
	Status      string                `json:"status"`
	Message     string                `json:"message"`
	Transaction *paystack.Transaction `json:"transaction,omitempty"`
	Order       *orders.Order         `json:"order,omitempty"`
}

// Verify asks the gateway about reference on behalf of userID. A settled
// transaction is reconciled exactly like a webhook; any other status is
// reported back without touching the order.
func (s *Service) Verify(ctx context.Context, userID, reference string) (*VerifyOutput, error) {
	if userID == "" {
		return nil, newError(KindUnauthorized, "authentication required", nil)
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, newError(KindValidation, "reference is required", nil)
	}

	tx, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, gatewayError(err)
	}
	if !tx.Successful() {
		return &VerifyOutput{
			Success:     false,
			Status:      tx.Status,
			Message:     tx.GatewayResponse,
			Transaction: tx,
		}, nil
	}

	if tx.Metadata.UserID != "" && tx.Metadata.UserID != userID {
		return nil, newError(KindForbidden, "payment belongs to another user", nil)
	}

	order, outcome, err := s.reconcile(ctx, tx)
	if err != nil {
		return nil, err
	}
	msg := "payment verified"
	if outcome == outcomeDuplicate {
		msg = "payment already verified"
	}
	return &VerifyOutput{
		Success:     true,
		Status:      tx.Status,
		Message:     msg,
		Transaction: tx,
		Order:       order,
	}, nil
}
