package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bakery-pos/internal/domain/discount"
)

const (
	discountColumns = `id, name, COALESCE(coupon_code, ''), discount_value, min_required_order_value,
	max_discount_amount, is_active, valid_from, valid_until`

	getDiscountByIDSQL = `SELECT ` + discountColumns + ` FROM discounts WHERE id = $1`

	getDiscountByCodeSQL = `SELECT ` + discountColumns + ` FROM discounts WHERE coupon_code = $1`

	listCouponCodesSQL = `SELECT coupon_code FROM discounts WHERE coupon_code IS NOT NULL`

	upsertDiscountSQL = `INSERT INTO discounts (name, coupon_code, discount_value, min_required_order_value,
	max_discount_amount, is_active, valid_from, valid_until)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (coupon_code) DO UPDATE
	SET name = EXCLUDED.name,
		discount_value = EXCLUDED.discount_value,
		min_required_order_value = EXCLUDED.min_required_order_value,
		max_discount_amount = EXCLUDED.max_discount_amount,
		is_active = EXCLUDED.is_active,
		valid_from = EXCLUDED.valid_from,
		valid_until = EXCLUDED.valid_until,
		updated_at = now()
	RETURNING id`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// GetByID returns a discount definition or discount.ErrNotFound.
func (r *DiscountRepository) GetByID(ctx context.Context, id int64) (*discount.Definition, error) {
	return r.getOne(ctx, getDiscountByIDSQL, id)
}

// GetByCouponCode returns the definition for code, matched
// case-insensitively, or discount.ErrNotFound.
func (r *DiscountRepository) GetByCouponCode(ctx context.Context, code string) (*discount.Definition, error) {
	return r.getOne(ctx, getDiscountByCodeSQL, discount.NormalizeCode(code))
}

func (r *DiscountRepository) getOne(ctx context.Context, query string, arg any) (*discount.Definition, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrapf(err, "query discount %v", arg)
	}
	def, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get discount %v", arg)
	}
	return &def, nil
}

// CouponCodes returns every stored coupon code.
func (r *DiscountRepository) CouponCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "query coupon codes")
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "collect coupon codes")
	}
	return codes, nil
}

// Upsert inserts or updates a definition keyed by its coupon code and sets
// def.ID. Definitions without a coupon code are rejected.
func (r *DiscountRepository) Upsert(ctx context.Context, def *discount.Definition) error {
	code := discount.NormalizeCode(def.CouponCode)
	if code == "" {
		return errors.Errorf("upsert discount %q: coupon code is required", def.Name)
	}
	def.CouponCode = code

	err := r.pool.QueryRow(ctx, upsertDiscountSQL,
		def.Name, code, def.Percent, def.MinOrderValue, def.MaxDiscount,
		def.Active, def.ValidFrom, def.ValidUntil,
	).Scan(&def.ID)
	if err != nil {
		return errors.Wrapf(err, "upsert discount %s", code)
	}
	return nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Definition, error) {
	var d discount.Definition
	err := row.Scan(
		&d.ID, &d.Name, &d.CouponCode, &d.Percent, &d.MinOrderValue,
		&d.MaxDiscount, &d.Active, &d.ValidFrom, &d.ValidUntil,
	)
	return d, err
}
