package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/imrishuroy/go-paystack-orderflow/internal/orders"
	"github.com/imrishuroy/go-paystack-orderflow/internal/paystack"
)

type outcome int

const (
	outcomePaid outcome = iota + 1
	outcomeDuplicate
)

// reconcile applies a settled gateway transaction to its order. Verify and
// the webhook both land here. The pending to paid transition is a
// conditional update, so concurrent deliveries produce one winner and only
// the winner notifies.
func (s *Service) reconcile(ctx context.Context, tx *paystack.Transaction) (*orders.Order, outcome, error) {
	ref := tx.Reference
	log := s.logger.With("reference", ref, "order_id", tx.Metadata.OrderID)

	if err := tx.Metadata.Validate(); err != nil {
		s.count(ctx, MetricReconcileRejected, "missing_metadata")
		return nil, 0, newError(KindValidation, "transaction metadata missing order or user id", err)
	}

	order, err := s.resolveOrder(ctx, tx)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrNotFound):
			s.count(ctx, MetricReconcileRejected, "unknown_reference")
			return nil, 0, newError(KindNotFound, "no order for payment reference", err)
		case errors.Is(err, orders.ErrDuplicateReference):
			s.count(ctx, MetricReconcileRejected, "duplicate_reference")
			return nil, 0, newError(KindInternal, "payment reference is ambiguous", err)
		default:
			return nil, 0, newError(KindInternal, "look up order by reference", err)
		}
	}

	if order.OrderID != tx.Metadata.OrderID || order.UserID != tx.Metadata.UserID {
		s.count(ctx, MetricReconcileRejected, "metadata_mismatch")
		log.WarnContext(ctx, "transaction metadata does not match order",
			"stored_order_id", order.OrderID, "metadata_user_id", tx.Metadata.UserID)
		return nil, 0, newError(KindForbidden, "payment does not belong to this order", nil)
	}

	switch order.PaymentStatus {
	case orders.PaymentPaid:
		return s.alreadyPaid(ctx, order, ref)
	case orders.PaymentPending:
	default:
		s.count(ctx, MetricReconcileRejected, "not_pending")
		return nil, 0, newError(KindConflict, "order is not awaiting payment", nil)
	}

	if tx.Amount != order.Amount || !strings.EqualFold(tx.Currency, s.orderCurrency(order)) {
		s.count(ctx, MetricReconcileRejected, "amount_mismatch")
		log.WarnContext(ctx, "settled amount does not match order total",
			"paid_amount", tx.Amount, "paid_currency", tx.Currency,
			"order_amount", order.Amount, "order_currency", order.Currency)
		return nil, 0, newError(KindConflict, "paid amount does not match order total", nil)
	}

	paidAt := s.now().UTC()
	if tx.PaidAt != nil {
		paidAt = tx.PaidAt.UTC()
	}
	err = s.orders.UpdatePaymentStatus(ctx, order.OrderID, orders.PaymentPending, orders.PaymentPaid, ref, paidAt)
	if errors.Is(err, orders.ErrStatusMismatch) {
		// lost the race to a concurrent delivery
		fresh, gerr := s.orders.Get(ctx, order.OrderID)
		if gerr != nil {
			return nil, 0, newError(KindInternal, "reload order", gerr)
		}
		if fresh.PaymentStatus != orders.PaymentPaid {
			return nil, 0, newError(KindConflict, "order is not awaiting payment", err)
		}
		return s.alreadyPaid(ctx, fresh, ref)
	}
	if err != nil {
		return nil, 0, newError(KindInternal, "mark order paid", err)
	}

	order.PaymentStatus = orders.PaymentPaid
	order.PaymentReference = ref
	order.PaidAt = &paidAt
	order.UpdatedAt = s.now().UTC()

	s.count(ctx, MetricReconcilePaid, "")
	log.InfoContext(ctx, "order paid", "amount", order.Amount, "currency", order.Currency)

	if s.notifier != nil {
		if err := s.notifier.OrderPaid(ctx, *order); err != nil {
			log.ErrorContext(ctx, "order confirmation dispatch failed", "error", err)
		}
	}
	return order, outcomePaid, nil
}

// resolveOrder finds the order a settled transaction pays for. The reference
// lookup misses when the customer re-initialized and paid an earlier attempt,
// or when the reference index has not caught up yet. In both cases the order
// named in the transaction metadata is read directly; the caller still checks
// ownership, status, amount and currency before settling it.
func (s *Service) resolveOrder(ctx context.Context, tx *paystack.Transaction) (*orders.Order, error) {
	order, err := s.orders.FindByReference(ctx, tx.Reference)
	if !errors.Is(err, orders.ErrNotFound) {
		return order, err
	}
	order, err = s.orders.Get(ctx, tx.Metadata.OrderID)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "reference not on order, resolved through metadata",
		"reference", tx.Reference, "order_id", order.OrderID, "attached_reference", order.PaymentReference)
	return order, nil
}

// alreadyPaid reports a redelivery of the settling transaction as a
// duplicate. A second successful charge under another reference is a
// conflict: the customer paid twice and needs a refund.
func (s *Service) alreadyPaid(ctx context.Context, order *orders.Order, ref string) (*orders.Order, outcome, error) {
	if order.PaymentReference != "" && order.PaymentReference != ref {
		s.count(ctx, MetricReconcileRejected, "paid_other_reference")
		s.logger.WarnContext(ctx, "order already paid under another reference",
			"order_id", order.OrderID, "reference", ref, "paid_reference", order.PaymentReference)
		return nil, 0, newError(KindConflict, "order already paid by another payment", nil)
	}
	s.count(ctx, MetricReconcileDuplicate, "")
	return order, outcomeDuplicate, nil
}

func (s *Service) orderCurrency(o *orders.Order) string {
	if o.Currency != "" {
		return o.Currency
	}
	return s.currency
}

// count is best-effort; a metrics failure is logged and dropped.
func (s *Service) count(ctx context.Context, name, reason string) {
	if s.metrics == nil {
		return
	}
	var dims map[string]string
	if reason != "" {
		dims = map[string]string{"Reason": reason}
	}
	if err := s.metrics.Count(ctx, name, dims); err != nil {
		s.logger.WarnContext(ctx, "metric emit failed", "metric", name, "error", err)
	}
}

func gatewayError(err error) error {
	var gerr *paystack.GatewayError
	if errors.As(err, &gerr) && gerr.Message != "" {
		return newError(KindGateway, gerr.Message, err)
	}
	return newError(KindGateway, "payment gateway request failed", err)
}
