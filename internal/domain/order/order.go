// Package order implements the order lifecycle around the pricing engine.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bakery-pos/internal/domain/catalog"
	"github.com/xenking/bakery-pos/internal/domain/discount"
	"github.com/xenking/bakery-pos/internal/domain/fault"
	"github.com/xenking/bakery-pos/internal/domain/pricing"
)

// ErrNotFound is returned by a Repository when the order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the lifecycle state of an order.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// ParseStatus validates s. The empty string is rejected.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusProcessing, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", fault.NewInvalidInput(fault.ReasonStatusInvalid, s, "unknown order status")
	}
}

// Order is a customer order together with its persisted pricing breakdown.
type Order struct {
	ID         string
	EmployeeID int64
	CustomerID *int64
	Status     Status
	Note       string

	Lines         []catalog.PricedLine
	Discounts     []discount.Applied
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	FinalAmount   decimal.Decimal
	// PricingDigest is the fingerprint of the breakdown above.
	PricingDigest string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Editable reports whether the order may still be re-priced.
func (o *Order) Editable() bool {
	return o.Status == StatusProcessing
}

// Pricing returns the stored breakdown as a pricing result.
func (o *Order) Pricing() pricing.Result {
	return pricing.Result{
		Lines:         o.Lines,
		Subtotal:      o.Subtotal,
		Discounts:     o.Discounts,
		TotalDiscount: o.TotalDiscount,
		FinalAmount:   o.FinalAmount,
	}
}

func (o *Order) setPricing(r *pricing.Result) {
	o.Lines = r.Lines
	o.Subtotal = r.Subtotal
	o.Discounts = r.Discounts
	o.TotalDiscount = r.TotalDiscount
	o.FinalAmount = r.FinalAmount
	o.PricingDigest = r.Fingerprint()
}

// Filter narrows a List call.
type Filter struct {
	// Status filters by status when non-empty.
	Status Status
	Limit  int
	Offset int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// List returns orders newest first.
	List(ctx context.Context, f Filter) ([]Order, error)
	// Replace overwrites the order row and replaces its lines and discounts
	// wholesale in one transaction.
	Replace(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) error
}
