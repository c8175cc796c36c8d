package payments

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/imrishuroy/go-paystack-orderflow/internal/orders"
	"github.com/imrishuroy/go-paystack-orderflow/internal/paystack"
)

// memStore is an in-memory OrderStore with the same conditional semantics
// as the real stores.
type memStore struct {
	mu     sync.Mutex
	orders map[string]orders.Order
	// updates counts successful status transitions.
	updates int
	// staleIndex makes reference lookups miss, like a lagging index.
	staleIndex bool
}

func newMemStore(list ...orders.Order) *memStore {
	m := &memStore{orders: make(map[string]orders.Order)}
	for _, o := range list {
		m.orders[o.OrderID] = o
	}
	return m
}

func (m *memStore) Get(ctx context.Context, id string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return &o, nil
}

func (m *memStore) FindByReference(ctx context.Context, ref string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staleIndex {
		return nil, orders.ErrNotFound
	}
	var found []orders.Order
	for _, o := range m.orders {
		if o.PaymentReference == ref {
			found = append(found, o)
		}
	}
	switch len(found) {
	case 0:
		return nil, orders.ErrNotFound
	case 1:
		return &found[0], nil
	default:
		return nil, orders.ErrDuplicateReference
	}
}

func (m *memStore) AttachReference(ctx context.Context, id, ref string) error {
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

func (m *memStore) UpdatePaymentStatus(ctx context.Context, id string, expected, next orders.PaymentStatus, ref string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.PaymentStatus != expected {
		return orders.ErrStatusMismatch
	}
	o.PaymentStatus = next
	o.PaymentReference = ref
	if next == orders.PaymentPaid {
		o.PaidAt = &at
	}
	m.orders[id] = o
	m.updates++
	return nil
}

func (m *memStore) status(id string) orders.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].PaymentStatus
}

// fakeGateway plays the payment provider. Transactions initialized through
// it can later be verified.
type fakeGateway struct {
	mu          sync.Mutex
	initialized []paystack.InitializeRequest
	txs         map[string]*paystack.Transaction
	initErr     error
	verifyErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{txs: make(map[string]*paystack.Transaction)}
}

func (g *fakeGateway) InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return nil, g.initErr
	}
	g.initialized = append(g.initialized, req)
	g.txs[req.Reference] = &paystack.Transaction{
		Status:    paystack.StatusAbandoned,
		Reference: req.Reference,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Metadata:  req.Metadata,
	}
	return &paystack.InitializeResult{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		AccessCode:       "ac_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *fakeGateway) VerifyTransaction(ctx context.Context, ref string) (*paystack.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	tx, ok := g.txs[ref]
	if !ok {
		return nil, &paystack.GatewayError{Op: "verify", StatusCode: 400, Message: "Transaction reference not found"}
	}
	cp := *tx
	return &cp, nil
}

func (g *fakeGateway) settle(ref, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tx := g.txs[ref]
	tx.Status = status
	if status == paystack.StatusSuccess {
		tx.GatewayResponse = "Successful"
		now := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
		tx.PaidAt = &now
	} else {
		tx.GatewayResponse = "Declined"
	}
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.initialized)
}

type countingNotifier struct {
	sent atomic.Int32
	err  error
}

func (n *countingNotifier) OrderPaid(ctx context.Context, o orders.Order) error {
	n.sent.Add(1)
	return n.err
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) Count(ctx context.Context, name string, dims map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[name]++
	return nil
}

func (m *countingMetrics) get(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

type refSeq struct{ n atomic.Int32 }

func (r *refSeq) next() string {
	return fmt.Sprintf("R%d", r.n.Add(1))
}
