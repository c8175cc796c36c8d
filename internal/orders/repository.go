package orders

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no order matches the lookup.
	ErrNotFound = errors.New("order not found")
	// ErrStatusMismatch is returned when a conditional payment status update
	// finds the order in a different state than expected.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrDuplicateReference is returned when a payment reference resolves to
	// more than one order, or is already attached to another order.
	ErrDuplicateReference = errors.New("payment reference matches more than one order")
	// ErrAlreadyExists is returned when creating an order whose id is taken.
	ErrAlreadyExists = errors.New("order already exists")
)

// Repository is the Order Store. Both the DynamoDB and PostgreSQL backends
// implement it.
type Repository interface {
	Create(ctx context.Context, order Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	FindByReference(ctx context.Context, reference string) (*Order, error)
	AttachReference(ctx context.Context, orderID, reference string) error
	UpdatePaymentStatus(ctx context.Context, orderID string, expected, next PaymentStatus, reference string, at time.Time) error
}

var (
	_ Repository = (*Store)(nil)
	_ Repository = (*PostgresStore)(nil)
)
