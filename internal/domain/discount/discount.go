// Package discount evaluates percentage discounts against an order subtotal.
package discount

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bakery-pos/internal/domain/fault"
)

// ErrNotFound is returned by a Repository when no definition matches.
var ErrNotFound = errors.New("discount not found")

// Definition is a named, time-bounded percentage discount rule.
type Definition struct {
	ID         int64
	Name       string
	CouponCode string
	// Percent is the discount value in percent with one decimal place
	// (10.5 means 10.5%).
	Percent       decimal.Decimal
	MinOrderValue decimal.Decimal
	MaxDiscount   decimal.Decimal
	Active        bool
	ValidFrom     *time.Time
	ValidUntil    time.Time
}

// NormalizeCode returns the stored form of a coupon code. Codes are
// compared in this form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Request references a discount definition either by id or by coupon code.
type Request struct {
	DiscountID int64
	CouponCode string
}

// Validate checks that exactly one reference is set.
func (r Request) Validate() error {
	code := strings.TrimSpace(r.CouponCode)
	switch {
	case r.DiscountID == 0 && code == "":
		return fault.NewInvalidInput(fault.ReasonDiscountRequest, "", "discount id or coupon code is required")
	case r.DiscountID != 0 && code != "":
		return fault.NewInvalidInput(fault.ReasonDiscountRequest, r.ref(), "discount id and coupon code are mutually exclusive")
	case r.DiscountID < 0:
		return fault.NewInvalidInput(fault.ReasonDiscountRequest, r.ref(), "discount id must be positive")
	}
	return nil
}

func (r Request) ref() string {
	if r.DiscountID != 0 {
		return strconv.FormatInt(r.DiscountID, 10)
	}
	return strings.TrimSpace(r.CouponCode)
}

// Applied is the realized effect of one definition on one order.
type Applied struct {
	DiscountID int64
	Name       string
	CouponCode string
	Percent    decimal.Decimal
	Amount     decimal.Decimal
}

// Request returns a request that resolves to the same definition.
func (a Applied) Request() Request {
	return Request{DiscountID: a.DiscountID}
}

// Repository provides read access to discount definitions.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Definition, error)
	// GetByCouponCode matches the code case-insensitively.
	GetByCouponCode(ctx context.Context, code string) (*Definition, error)
}
