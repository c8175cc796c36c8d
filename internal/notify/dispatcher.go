package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imrishuroy/go-paystack-orderflow/internal/aws"
	"github.com/imrishuroy/go-paystack-orderflow/internal/orders"
)

// Publisher sends a message body to the notification queue.
type Publisher interface {
	SendMessage(ctx context.Context, body string, attributes map[string]string) error
}

// Dispatcher enqueues customer notifications. Delivery happens in the
// notifier worker.
type Dispatcher struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewDispatcher(publisher Publisher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{publisher: publisher, logger: logger}
}

// OrderPaid enqueues the order confirmation for a freshly paid order. A
// dispatcher without a queue logs and drops the message.
func (d *Dispatcher) OrderPaid(ctx context.Context, order orders.Order) error {
	msg := Message{
		Kind:      KindOrderConfirmed,
		OrderID:   order.OrderID,
		UserID:    order.UserID,
		Email:     order.Email,
		Reference: order.PaymentReference,
		Amount:    order.Amount,
		Currency:  order.Currency,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	attrs := map[string]string{
		"kind":      msg.Kind,
		"order_id":  msg.OrderID,
		"dedup_key": msg.DedupKey(),
	}
	if err := d.publisher.SendMessage(ctx, string(body), attrs); err != nil {
		if errors.Is(err, aws.ErrNoQueue) {
			d.logger.InfoContext(ctx, "notification queue not configured, dropping message",
				"kind", msg.Kind, "order_id", msg.OrderID)
			return nil
		}
		return fmt.Errorf("enqueue %s for order %s: %w", msg.Kind, msg.OrderID, err)
	}
	return nil
}
