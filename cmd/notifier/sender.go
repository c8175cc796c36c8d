package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/imrishuroy/go-paystack-orderflow/internal/notify"
)

// Relay is the queue the mail service reads rendered emails from.
type Relay interface {
	SendMessage(ctx context.Context, messageBody string, attributes map[string]string) error
}

// relaySender renders a notification and hands it to the mail relay queue.
type relaySender struct {
	relay  Relay
	logger *slog.Logger
}

func (s relaySender) Send(ctx context.Context, msg notify.Message) error {
	email, err := notify.Render(msg)
	if errors.Is(err, notify.ErrNoRecipient) {
		// nothing to retry towards
		s.logger.WarnContext(ctx, "notification without recipient skipped", "kind", msg.Kind, "order_id", msg.OrderID)
		return nil
	}
	if err != nil {
		return err
	}
	body, err := email.Encode()
	if err != nil {
		return err
	}
	if err := s.relay.SendMessage(ctx, body, map[string]string{
		"kind":      msg.Kind,
		"order_id":  msg.OrderID,
		"dedup_key": email.DedupKey,
	}); err != nil {
		return fmt.Errorf("relay email: %w", err)
	}
	return nil
}

// logSender writes notifications to the log. main uses it when no mail relay
// queue is configured, which is the local setup.
type logSender struct {
	logger *slog.Logger
}

func (s logSender) Send(ctx context.Context, msg notify.Message) error {
	s.logger.InfoContext(ctx, "order notification",
		"kind", msg.Kind,
		"order_id", msg.OrderID,
		"email", msg.Email,
		"reference", msg.Reference,
		"amount", msg.Amount,
		"currency", msg.Currency,
	)
	return nil
}
