package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/imrishuroy/go-paystack-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-paystack-orderflow/internal/orders"
	"github.com/imrishuroy/go-paystack-orderflow/internal/paystack"
)

type memOrders struct {
	mu        sync.Mutex
	orders    map[string]orders.Order
	createErr error
}

func newMemOrders() *memOrders {
	return &memOrders{orders: make(map[string]orders.Order)}
}

func (m *memOrders) Create(ctx context.Context, o orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.orders[o.OrderID]; ok {
		return orders.ErrAlreadyExists
	}
	m.orders[o.OrderID] = o
	return nil
}

func (m *memOrders) Get(ctx context.Context, id string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &o, nil
}

func (m *memOrders) FindByReference(ctx context.Context, ref string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.PaymentReference == ref {
			return &o, nil
		}
	}
	return nil, orders.ErrNotFound
}

func (m *memOrders) AttachReference(ctx context.Context, id, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.PaymentStatus != orders.PaymentPending {
		return orders.ErrStatusMismatch
	}
	o.PaymentReference = ref
	m.orders[id] = o
	return nil
}

func (m *memOrders) UpdatePaymentStatus(ctx context.Context, id string, expected, next orders.PaymentStatus, ref string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.PaymentStatus != expected {
		return orders.ErrStatusMismatch
	}
	o.PaymentStatus = next
	o.PaymentReference = ref
	o.PaidAt = &at
	m.orders[id] = o
	return nil
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type memIdempotency struct {
	mu        sync.Mutex
	recs      map[string]idempotency.IdempotencyRecord
	failedErr error
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{recs: make(map[string]idempotency.IdempotencyRecord)}
}

func (m *memIdempotency) CreateIfNotExists(ctx context.Context, key, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[key]; ok {
		return false, nil
	}
	m.recs[key] = idempotency.IdempotencyRecord{IdempotencyKey: key, OrderID: orderID, Status: idempotency.StatusInProgress}
	return true, nil
}

func (m *memIdempotency) Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memIdempotency) Reclaim(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[key]
	if !ok || rec.Status != idempotency.StatusFailed {
		return idempotency.ErrConditionFailed
	}
	rec.Status = idempotency.StatusInProgress
	m.recs[key] = rec
	return nil
}

func (m *memIdempotency) MarkDone(ctx context.Context, key, body string, status int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.recs[key]
	rec.Status = idempotency.StatusDone
	rec.ResponseBody = body
	rec.ResponseStatus = status
	m.recs[key] = rec
	return nil
}

func (m *memIdempotency) MarkFailed(ctx context.Context, key, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failedErr != nil {
		return m.failedErr
	}
	rec := m.recs[key]
	rec.Status = idempotency.StatusFailed
	rec.Note = note
	m.recs[key] = rec
	return nil
}

// stubGateway accepts every transaction and verifies whatever status the
// test settles.
type stubGateway struct {
	mu    sync.Mutex
	calls int
	txs   map[string]paystack.Transaction
}

func newStubGateway() *stubGateway {
	return &stubGateway{txs: make(map[string]paystack.Transaction)}
}

func (g *stubGateway) InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.txs[req.Reference] = paystack.Transaction{
		Status:    paystack.StatusAbandoned,
		Reference: req.Reference,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Metadata:  req.Metadata,
	}
	return &paystack.InitializeResult{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		AccessCode:       "ac",
		Reference:        req.Reference,
	}, nil
}

func (g *stubGateway) VerifyTransaction(ctx context.Context, ref string) (*paystack.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tx, ok := g.txs[ref]
	if !ok {
		return nil, &paystack.GatewayError{Op: "verify", StatusCode: 400, Message: "Transaction reference not found"}
	}
	return &tx, nil
}

func (g *stubGateway) settle(ref, status, response string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tx := g.txs[ref]
	tx.Status = status
	tx.GatewayResponse = response
	g.txs[ref] = tx
}
