package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested price reference does not exist.
var ErrNotFound = errors.New("price reference not found")

// Price is a priced variant of a product (a size/price combination).
type Price struct {
	ID          int64
	ProductName string
	SizeName    string
	UnitPrice   decimal.Decimal
	Active      bool
}

// Repository provides read access to price references.
type Repository interface {
	// GetPrice returns a single price reference or ErrNotFound.
	GetPrice(ctx context.Context, id int64) (*Price, error)
	// GetPrices returns the price references matching ids. Missing ids are
	// omitted; order of the result is unspecified.
	GetPrices(ctx context.Context, ids []int64) ([]Price, error)
}
