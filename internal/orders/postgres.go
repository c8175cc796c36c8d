package orders

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const orderColumns = `id, user_id, email, items, amount, currency, shipping_address,
	payment_method, payment_status, delivery_status, payment_reference, paid_at, created_at, updated_at`

// PgxAPI is the subset of *pgxpool.Pool the store uses.
type PgxAPI interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxAPI = (*pgxpool.Pool)(nil)

// PostgresStore is the relational Order Store backed by a pgx pool.
type PostgresStore struct {
	db    PgxAPI
	close func()
}

// NewPostgresStoreWithDB wraps an existing connection. The caller owns its
// lifecycle and migrations.
func NewPostgresStoreWithDB(db PgxAPI) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresStore connects to url and applies the embedded migrations.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{db: pool, close: pool.Close}, nil
}

// RunMigrations executes every embedded migration in lexical order.
// Migrations are written to be re-runnable.
func RunMigrations(ctx context.Context, db PgxAPI) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := db.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("exec migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Close releases the pool when the store opened it.
func (s *PostgresStore) Close() {
	if s.close != nil {
		s.close()
	}
}

func (s *PostgresStore) Create(ctx context.Context, order Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal address: %w", err)
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO orders (id, user_id, email, items, amount, currency, shipping_address,
			payment_method, payment_status, delivery_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		order.OrderID, order.UserID, order.Email, items, order.Amount, order.Currency, address,
		order.PaymentMethod, order.PaymentStatus, order.DeliveryStatus, order.CreatedAt, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, orderID string) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	return scanOrder(row)
}

func (s *PostgresStore) FindByReference(ctx context.Context, reference string) (*Order, error) {
	// the partial unique index guarantees at most one row
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_reference = $1`, reference)
	return scanOrder(row)
}

func (s *PostgresStore) AttachReference(ctx context.Context, orderID, reference string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET payment_reference = $2, updated_at = NOW()
		WHERE id = $1 AND payment_status = $3`,
		orderID, reference, PaymentPending,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return fmt.Errorf("attach reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusMismatch
	}
	return nil
}

func (s *PostgresStore) UpdatePaymentStatus(ctx context.Context, orderID string, expected, next PaymentStatus, reference string, at time.Time) error {
	var paidAt *time.Time
	if next == PaymentPaid {
		t := at.UTC()
		paidAt = &t
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET payment_status = $3,
		    payment_reference = $4,
		    paid_at = COALESCE($5, paid_at),
		    updated_at = NOW()
		WHERE id = $1 AND payment_status = $2`,
		orderID, expected, next, reference, paidAt,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusMismatch
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o         Order
		items     []byte
		address   []byte
		reference *string
	)
	err := row.Scan(&o.OrderID, &o.UserID, &o.Email, &items, &o.Amount, &o.Currency, &address,
		&o.PaymentMethod, &o.PaymentStatus, &o.DeliveryStatus, &reference, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal address: %w", err)
	}
	if reference != nil {
		o.PaymentReference = *reference
	}
	return &o, nil
}
