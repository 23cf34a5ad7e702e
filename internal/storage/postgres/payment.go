package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bakery-pos/internal/domain/payment"
)

const (
	insertPaymentSQL = `INSERT INTO payments (id, order_id, method, amount_paid, change_amount, status, paid_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	latestPaymentSQL = `SELECT id, order_id, method, amount_paid, change_amount, status, paid_at
	FROM payments WHERE order_id = $1
	ORDER BY paid_at DESC, created_at DESC
	LIMIT 1`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create persists a payment.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	_, err := r.pool.Exec(ctx, insertPaymentSQL,
		p.ID, p.OrderID, string(p.Method), p.AmountPaid, p.Change, string(p.Status), p.PaidAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create payment for order %q", p.OrderID)
	}
	return nil
}

// Latest returns the most recent payment of an order or payment.ErrNotFound.
func (r *PaymentRepository) Latest(ctx context.Context, orderID string) (*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, latestPaymentSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "query payments of order %q", orderID)
	}
	p, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (payment.Payment, error) {
		var (
			p              payment.Payment
			method, status string
		)
		err := row.Scan(&p.ID, &p.OrderID, &method, &p.AmountPaid, &p.Change, &status, &p.PaidAt)
		p.Method = payment.Method(method)
		p.Status = payment.Status(status)
		return p, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, errors.Wrapf(err, "latest payment of order %q", orderID)
	}
	return &p, nil
}
