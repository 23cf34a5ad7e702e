package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bakery-pos/internal/domain/catalog"
	"github.com/xenking/bakery-pos/internal/domain/discount"
	"github.com/xenking/bakery-pos/internal/domain/order"
)

const (
	orderColumns = `id, employee_id, customer_id, status, customize_note, subtotal,
	total_discount, final_amount, pricing_digest, created_at, updated_at`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateOrderSQL = `UPDATE orders
	SET employee_id = $2, customer_id = $3, status = $4, customize_note = $5, subtotal = $6,
		total_discount = $7, final_amount = $8, pricing_digest = $9, updated_at = $10
	WHERE id = $1`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
	WHERE ($1 = '' OR status = $1)
	ORDER BY created_at DESC, id DESC
	LIMIT $2 OFFSET $3`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	insertLineSQL = `INSERT INTO order_lines (order_id, position, price_id, product_name, size_name,
	unit_price, quantity, total, option, note)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	insertDiscountSQL = `INSERT INTO order_discounts (order_id, position, discount_id, name, coupon_code,
	percent, amount)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	deleteLinesSQL     = `DELETE FROM order_lines WHERE order_id = $1`
	deleteDiscountsSQL = `DELETE FROM order_discounts WHERE order_id = $1`

	linesSQL = `SELECT order_id, price_id, product_name, size_name, unit_price, quantity, total, option, note
	FROM order_lines WHERE order_id = ANY($1) ORDER BY order_id, position`

	discountsSQL = `SELECT order_id, discount_id, name, coupon_code, percent, amount
	FROM order_discounts WHERE order_id = ANY($1) ORDER BY order_id, position`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Lines
// and discounts live in child tables ordered by position.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order with its lines and discounts in one
// transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.EmployeeID, o.CustomerID, string(o.Status), o.Note, o.Subtotal,
			o.TotalDiscount, o.FinalAmount, o.PricingDigest, o.CreatedAt, o.UpdatedAt,
		); err != nil {
			return errors.Wrap(err, "insert order")
		}
		return insertBreakdown(ctx, tx, o)
	})
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// Replace overwrites the order row and replaces its lines and discounts.
func (r *OrderRepository) Replace(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateOrderSQL,
			o.ID, o.EmployeeID, o.CustomerID, string(o.Status), o.Note, o.Subtotal,
			o.TotalDiscount, o.FinalAmount, o.PricingDigest, o.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "update order")
		}
		if tag.RowsAffected() == 0 {
			return order.ErrNotFound
		}
		if _, err := tx.Exec(ctx, deleteLinesSQL, o.ID); err != nil {
			return errors.Wrap(err, "delete lines")
		}
		if _, err := tx.Exec(ctx, deleteDiscountsSQL, o.ID); err != nil {
			return errors.Wrap(err, "delete discounts")
		}
		return insertBreakdown(ctx, tx, o)
	})
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return order.ErrNotFound
		}
		return errors.Wrapf(err, "replace order %q", o.ID)
	}
	return nil
}

func insertBreakdown(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(insertLineSQL,
			o.ID, i, l.PriceID, l.ProductName, l.SizeName,
			l.UnitPrice, l.Quantity, l.Total, l.Option, l.Note,
		)
	}
	for i, d := range o.Discounts {
		batch.Queue(insertDiscountSQL,
			o.ID, i, d.DiscountID, d.Name, d.CouponCode, d.Percent, d.Amount,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "insert breakdown")
	}
	return nil
}

// Get returns the order with its breakdown or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "query order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	orders := []order.Order{o}
	if err := r.loadBreakdowns(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// List returns a page of orders, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, string(f.Status), f.Limit, f.Offset)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "collect orders")
	}
	if err := r.loadBreakdowns(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadBreakdowns fills lines and discounts of orders with two queries.
func (r *OrderRepository) loadBreakdowns(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		byID[orders[i].ID] = &orders[i]
	}

	rows, err := r.pool.Query(ctx, linesSQL, ids)
	if err != nil {
		return errors.Wrap(err, "query order lines")
	}
	var orderID string
	var line catalog.PricedLine
	_, err = pgx.ForEachRow(rows, []any{
		&orderID, &line.PriceID, &line.ProductName, &line.SizeName, &line.UnitPrice,
		&line.Quantity, &line.Total, &line.Option, &line.Note,
	}, func() error {
		o := byID[orderID]
		o.Lines = append(o.Lines, line)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "scan order lines")
	}

	rows, err = r.pool.Query(ctx, discountsSQL, ids)
	if err != nil {
		return errors.Wrap(err, "query order discounts")
	}
	var applied discount.Applied
	_, err = pgx.ForEachRow(rows, []any{
		&orderID, &applied.DiscountID, &applied.Name, &applied.CouponCode, &applied.Percent, &applied.Amount,
	}, func() error {
		o := byID[orderID]
		o.Discounts = append(o.Discounts, applied)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "scan order discounts")
	}
	return nil
}

// Delete removes an order; lines, discounts and payments cascade.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete order %q", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.EmployeeID, &o.CustomerID, &status, &o.Note, &o.Subtotal,
		&o.TotalDiscount, &o.FinalAmount, &o.PricingDigest, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}
