package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bakery-pos/internal/domain/catalog"
)

const (
	getPriceSQL = `SELECT id, product_name, size_name, price, is_active
	FROM product_prices WHERE id = $1`

	getPricesSQL = `SELECT id, product_name, size_name, price, is_active
	FROM product_prices WHERE id = ANY($1)`

	upsertPriceSQL = `INSERT INTO product_prices (product_name, size_name, price, is_active)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (product_name, size_name) DO UPDATE
	SET price = EXCLUDED.price, is_active = EXCLUDED.is_active
	RETURNING id`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetPrice returns a single price reference or catalog.ErrNotFound.
func (r *CatalogRepository) GetPrice(ctx context.Context, id int64) (*catalog.Price, error) {
	rows, err := r.pool.Query(ctx, getPriceSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "query price %d", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get price %d", id)
	}
	return &p, nil
}

// GetPrices returns the price references matching ids in one query.
func (r *CatalogRepository) GetPrices(ctx context.Context, ids []int64) ([]catalog.Price, error) {
	rows, err := r.pool.Query(ctx, getPricesSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "query prices")
	}
	prices, err := pgx.CollectRows(rows, scanPrice)
	if err != nil {
		return nil, errors.Wrap(err, "collect prices")
	}
	return prices, nil
}

// UpsertPrice inserts or updates a price reference keyed by product and size
// name, and sets p.ID.
func (r *CatalogRepository) UpsertPrice(ctx context.Context, p *catalog.Price) error {
	err := r.pool.QueryRow(ctx, upsertPriceSQL, p.ProductName, p.SizeName, p.UnitPrice, p.Active).Scan(&p.ID)
	if err != nil {
		return errors.Wrapf(err, "upsert price %s/%s", p.ProductName, p.SizeName)
	}
	return nil
}

func scanPrice(row pgx.CollectableRow) (catalog.Price, error) {
	var p catalog.Price
	err := row.Scan(&p.ID, &p.ProductName, &p.SizeName, &p.UnitPrice, &p.Active)
	return p, err
}
