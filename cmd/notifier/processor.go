package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-paystack-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-paystack-orderflow/internal/notify"
)

// Dedup records which notifications were already delivered.
type Dedup interface {
	CreateIfNotExists(ctx context.Context, key, orderID string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
	Reclaim(ctx context.Context, key string) error
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// Sender delivers a notification to the customer.
type Sender interface {
	Send(ctx context.Context, msg notify.Message) error
}

// Processor consumes the notification queue. SQS delivers at least once; the
// dedup table turns that into at most one delivery per kind and order.
type Processor struct {
	dedup  Dedup
	sender Sender
	logger *slog.Logger
}

func NewProcessor(dedup Dedup, sender Sender, logger *slog.Logger) *Processor {
	return &Processor{dedup: dedup, sender: sender, logger: logger}
}

// Handle processes a batch and reports the messages that should be retried.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.logger.ErrorContext(ctx, "notification failed", "message_id", rec.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

var errInFlight = errors.New("notification already in flight")

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	msg, err := notify.Decode(rec.Body)
	if err != nil {
		// redelivery cannot fix a bad body
		p.logger.WarnContext(ctx, "dropping malformed notification", "message_id", rec.MessageId, "error", err)
		return nil
	}
	key := msg.DedupKey()
	log := p.logger.With("kind", msg.Kind, "order_id", msg.OrderID)

	created, err := p.dedup.CreateIfNotExists(ctx, key, msg.OrderID)
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if !created {
		existing, err := p.dedup.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("load %s: %w", key, err)
		}
		if existing == nil {
			return fmt.Errorf("claim %s: record vanished", key)
		}
		switch existing.Status {
		case idempotency.StatusDone:
			log.InfoContext(ctx, "duplicate notification skipped")
			return nil
		case idempotency.StatusInProgress:
			return errInFlight
		case idempotency.StatusFailed:
			if err := p.dedup.Reclaim(ctx, key); err != nil {
				if errors.Is(err, idempotency.ErrConditionFailed) {
					return errInFlight
				}
				return fmt.Errorf("reclaim %s: %w", key, err)
			}
		}
	}

	if err := p.sender.Send(ctx, msg); err != nil {
		if mErr := p.dedup.MarkFailed(ctx, key, err.Error()); mErr != nil {
			log.WarnContext(ctx, "mark notification failed", "error", mErr)
		}
		return fmt.Errorf("send %s: %w", key, err)
	}

	if err := p.dedup.MarkDone(ctx, key, "", 0); err != nil {
		// delivered; a retry would send twice, so do not report failure
		log.WarnContext(ctx, "mark notification done failed", "error", err)
	}
	log.InfoContext(ctx, "notification sent")
	return nil
}
