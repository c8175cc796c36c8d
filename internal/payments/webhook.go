package payments

import (
	"context"
	"errors"

	"github.com/imrishuroy/go-paystack-orderflow/internal/paystack"
)

// ErrMalformedEvent is returned for a signed webhook body that is not an
// event envelope. It is the only processing failure reported to the gateway.
var ErrMalformedEvent = errors.New("malformed webhook event")

// ReceiveWebhook authenticates and processes one webhook delivery. Only a bad
// signature or an unparseable body is returned as an error; reconciliation
// problems are logged so the gateway does not redeliver.
func (s *Service) ReceiveWebhook(ctx context.Context, body []byte, signature string) error {
	if s.secret == "" {
		s.logger.ErrorContext(ctx, "webhook secret not configured")
		return newError(KindUnauthorized, "webhook signature cannot be checked", nil)
	}
	if err := paystack.VerifySignature(s.secret, body, signature); err != nil {
		s.count(ctx, MetricWebhookSignatureInvalid, "")
		s.logger.WarnContext(ctx, "webhook rejected", "error", err)
		return newError(KindUnauthorized, "invalid webhook signature", err)
	}

	ev, err := paystack.ParseEvent(body)
	if err != nil {
		s.logger.ErrorContext(ctx, "webhook body unparseable", "error", err)
		return errors.Join(ErrMalformedEvent, err)
	}

	s.HandleEvent(ctx, ev)
	return nil
}

// HandleEvent processes a parsed gateway event. It never fails.
func (s *Service) HandleEvent(ctx context.Context, ev *paystack.Event) {
	log := s.logger.With("event", ev.Event, "reference", ev.Data.Reference)

	switch ev.Event {
	case paystack.EventChargeSuccess:
		if !ev.Data.Successful() {
			log.WarnContext(ctx, "charge.success event with non-success status", "status", ev.Data.Status)
			return
		}
		order, oc, err := s.reconcile(ctx, &ev.Data)
		if err != nil {
			log.WarnContext(ctx, "webhook reconciliation skipped",
				"order_id", ev.Data.Metadata.OrderID, "kind", KindOf(err), "error", err)
			return
		}
		if oc == outcomeDuplicate {
			log.InfoContext(ctx, "webhook for already paid order", "order_id", order.OrderID)
		}

	case paystack.EventChargeFailed:
		// failed attempts leave the order pending so the customer can retry
		log.InfoContext(ctx, "charge failed",
			"order_id", ev.Data.Metadata.OrderID, "gateway_response", ev.Data.GatewayResponse)

	default:
		s.count(ctx, MetricWebhookIgnored, "")
		log.InfoContext(ctx, "webhook event ignored")
	}
}
